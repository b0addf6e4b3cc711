package goAccounts

import (
	"context"
	"html"
	"strings"

	"github.com/MrEthical07/goAccounts/mail"
	"go.uber.org/zap"
)

const (
	defaultAdminApprovalSubject = "A New User Registered and Needs Approval"

	defaultAdminApprovalHTML = `<p>The user <b>[name] ([email])</b> has been registered.</p>` +
		`<p>Please check "Administration -> Users" to activate or delete it.</p>`

	defaultAdminApprovalWithReasonHTML = `<p>The user <b>[name] ([email])</b> has been registered.</p>` +
		`<p><b>Reason:</b> [reason]</p>` +
		`<p>Please check "Administration -> Users" to activate or delete it.</p>`
)

// adminRecipients lists every admin address as "name<address>".
func (e *Engine) adminRecipients(ctx context.Context) ([]string, error) {
	admins, err := e.roles.FindUsersInRole(ctx, RoleAdmin)
	if err != nil {
		return nil, err
	}

	var to []string
	for _, admin := range admins {
		for _, em := range admin.Emails {
			if em.Address == "" {
				continue
			}
			to = append(to, admin.Name+"<"+em.Address+">")
		}
	}
	return to, nil
}

func (e *Engine) adminApprovalMessage(settings Settings, opts CreateOptions, user *User, to []string) mail.Message {
	name := opts.Name
	if name == "" && opts.Profile != nil {
		name = opts.Profile.Name
	}
	email := opts.Email
	if email == "" {
		email = user.PrimaryEmail()
	}

	tpl := e.config.Templates.AdminApprovalHTML
	if strings.TrimSpace(opts.Reason) != "" {
		tpl = e.config.Templates.AdminApprovalWithReasonHTML
	}

	data := map[string]string{
		"name":      html.EscapeString(name),
		"email":     html.EscapeString(email),
		"reason":    html.EscapeString(opts.Reason),
		"Site_Name": settings.SiteName,
		"Site_URL":  strings.TrimRight(settings.SiteURL, "/"),
	}

	return mail.Message{
		To:      to,
		From:    settings.FromEmail,
		Subject: "[" + settings.SiteName + "] " + mail.Replace(e.config.Templates.AdminApprovalSubject, data),
		HTML:    mail.Replace(tpl, data),
	}
}

func (e *Engine) notifyAdmins(ctx context.Context, settings Settings, opts CreateOptions, user *User) error {
	if e.mailer == nil {
		e.log.Warn("admin approval mail skipped: no mailer", zap.String("username", user.Username))
		e.metricInc(MetricAdminNotificationSkipped)
		return nil
	}

	to, err := e.adminRecipients(ctx)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		e.log.Warn("admin approval mail skipped: no admin addresses", zap.String("username", user.Username))
		e.metricInc(MetricAdminNotificationSkipped)
		return nil
	}

	if err := e.mailer.Send(ctx, e.adminApprovalMessage(settings, opts, user, to)); err != nil {
		return err
	}
	e.metricInc(MetricAdminNotificationSent)
	return nil
}

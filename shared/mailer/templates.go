package mailer

import (
	"fmt"
	"html"
)

const layout = `<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f7f9fc;">
	<table align="center" border="0" cellpadding="0" cellspacing="0" width="600" style="border-collapse: collapse; background-color: #ffffff;">
		<tr>
			<td style="padding: 30px; color: #333333; font-size: 16px; line-height: 1.6;">
%s
			</td>
		</tr>
	</table>
</body>
</html>`

// VerificationEmail carries the 6-digit code sent after registration
func VerificationEmail(to, name, code string) Email {
	return Email{
		To:      to,
		Subject: "Verify your email address",
		HTML: fmt.Sprintf(layout, fmt.Sprintf(`<p>Hi <strong>%s</strong>,</p>
<p>Use this code to verify your email address:</p>
<p style="font-size: 24px; font-weight: bold; letter-spacing: 4px; color: #5271ff;">%s</p>
<p>The code expires in 10 minutes. If you did not sign up, ignore this email.</p>`, html.EscapeString(name), code)),
		Text: fmt.Sprintf("Hi %s,\n\nYour verification code is %s.\nIt expires in 10 minutes.\n", name, code),
	}
}

// PasswordResetEmail links to the frontend reset page
func PasswordResetEmail(to, name, resetURL string) Email {
	return Email{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(layout, fmt.Sprintf(`<p>Hi <strong>%s</strong>,</p>
<p>We received a request to reset your password.</p>
<p><a href="%s" style="color: #5271ff;">Reset password</a></p>
<p>The link is valid for 1 hour. If you did not ask for this, ignore this email.</p>`, html.EscapeString(name), html.EscapeString(resetURL))),
		Text: fmt.Sprintf("Hi %s,\n\nReset your password here: %s\nThe link is valid for 1 hour.\n", name, resetURL),
	}
}

// TicketCreatedEmail confirms a new ticket to its creator
func TicketCreatedEmail(to, name, ticketID, title string) Email {
	return Email{
		To:      to,
		Subject: fmt.Sprintf("[%s] %s", ticketID, title),
		HTML: fmt.Sprintf(layout, fmt.Sprintf(`<p>Hi <strong>%s</strong>,</p>
<p>Your ticket <strong>%s</strong> has been received:</p>
<p><em>%s</em></p>
<p>Our support team will get back to you soon.</p>`, html.EscapeString(name), ticketID, html.EscapeString(title))),
		Text: fmt.Sprintf("Hi %s,\n\nYour ticket %s has been received: %s\n", name, ticketID, title),
	}
}

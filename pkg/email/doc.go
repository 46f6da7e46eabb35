// Package email delivers rendered HTML messages for the email notification
// channel.
//
// Sender is the mail capability. Three transports implement it:
//   - NewSMTPSender: authenticated SMTP via github.com/wneessen/go-mail
//   - NewPostmarkSender: Postmark transactional API
//   - NewDevSender: writes one .eml file per message to a directory
//
// The transport is chosen once when a channel is configured; callers never
// probe for optional mail support at send time. The templates subpackage
// renders the HTML envelope that wraps a plain-text notification body.
//
//	sender, err := email.NewSMTPSender(email.SMTPConfig{
//	    Host: "smtp.example.com", Port: 587,
//	    Username: "robot@example.com", Password: pass, TLS: true,
//	})
//	err = sender.Send(ctx, email.Message{
//	    From: "robot@example.com", To: []string{"ops@example.com"},
//	    Subject: "Order shipped", HTML: html,
//	})
package email

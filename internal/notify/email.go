package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"food-order-service/config"

	"gopkg.in/gomail.v2"
)

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
	<h2>Thank you for your order, {{.CustomerName}}!</h2>
	<p>Order <strong>#{{.OrderNumber}}</strong> is {{if eq .PaymentStatus "Paid"}}paid{{else}}confirmed and will be paid on delivery{{end}}.</p>
	{{range .Restaurants}}
	<h3>{{.Name}}</h3>
	<table cellpadding="4">
		{{range .Items}}
		<tr>
			<td>{{.Quantity}} x {{.Name}}{{if .Variant}} ({{.Variant}}){{end}}</td>
			<td align="right">{{.Subtotal.StringFixed 2}}</td>
		</tr>
		{{end}}
	</table>
	{{end}}
	<p>Subtotal: {{.SubTotal.StringFixed 2}}<br>
	{{if .DiscountAmount.IsPositive}}Discount: -{{.DiscountAmount.StringFixed 2}}<br>{{end}}
	<strong>Total: {{.TotalAmount.StringFixed 2}}</strong></p>
</body>
</html>`))

// SMTPSender sends confirmation emails through an SMTP relay
type SMTPSender struct {
	from string
	send func(*gomail.Message) error
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPSender{
		from: cfg.From,
		send: func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

func (s *SMTPSender) SendOrderConfirmation(ctx context.Context, c *Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := renderConfirmation(c)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", c.To)
	m.SetHeader("Subject", "Order confirmation #"+c.OrderNumber)
	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", c.To, err)
	}
	return nil
}

func renderConfirmation(c *Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("failed to render confirmation: %w", err)
	}
	return buf.String(), nil
}

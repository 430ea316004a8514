package mail

import "html/template"

// namedTemplate pairs a subject line with a parsed HTML body. Bodies render
// against the event.Email payload directly.
type namedTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]namedTemplate{
	"verifyEmail": {
		subject: "Please verify your email address",
		body: mustParse("verifyEmail", `
<p>Hi {{.Username}},</p>
<p>Confirm your email address to finish setting up your account.</p>
<p><a href="{{.VerifyLink}}">Verify email</a></p>
<p>If you did not create an account, you can ignore this message.</p>`),
	},
	"forgotPassword": {
		subject: "Reset your password",
		body: mustParse("forgotPassword", `
<p>Hi {{.Username}},</p>
<p>We received a request to reset your password. The link below is valid for one hour.</p>
<p><a href="{{.ResetLink}}">Reset password</a></p>
<p>If you did not request this, no action is needed.</p>`),
	},
	"resetPasswordSuccess": {
		subject: "Your password was changed",
		body: mustParse("resetPasswordSuccess", `
<p>Hi {{.Username}},</p>
<p>Your password was changed successfully. If this was not you, contact support immediately.</p>`),
	},
	"orderPlaced": {
		subject: "You have a new order",
		body: mustParse("orderPlaced", `
<p>Hi {{.SellerName}},</p>
<p>{{.BuyerName}} placed an order for <strong>{{.Title}}</strong>.</p>
<p>Amount: ${{printf "%.2f" .Amount}}</p>
<p><a href="{{.OrderURL}}">View order {{.OrderID}}</a></p>`),
	},
	"orderReceipt": {
		subject: "Your order receipt",
		body: mustParse("orderReceipt", `
<p>Hi {{.BuyerName}},</p>
<p>Thanks for your order of <strong>{{.Title}}</strong>.</p>
<p>{{.Description}}</p>
<p>Total charged: ${{printf "%.2f" .Amount}}</p>
<p><a href="{{.OrderURL}}">View order {{.OrderID}}</a></p>`),
	},
	"orderDelivered": {
		subject: "Your order was delivered",
		body: mustParse("orderDelivered", `
<p>Hi {{.BuyerName}},</p>
<p>{{.SellerName}} delivered your order <strong>{{.Title}}</strong>.</p>
<p>Review the delivery and approve the order if you are satisfied.</p>
<p><a href="{{.OrderURL}}">View delivery for order {{.OrderID}}</a></p>`),
	},
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

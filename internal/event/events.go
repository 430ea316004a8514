// Package event defines the wire payloads carried on the messaging fabric.
// Every payload is a flat JSON object with a "type" discriminator; consumers
// parse permissively and ignore fields they do not use.
package event

import "time"

// Event types routed to the seller projection.
const (
	TypeCreateOrder    = "create-order"
	TypeApproveOrder   = "approve-order"
	TypeCancelOrder    = "cancel-order"
	TypeUpdateGigCount = "update-gig-count"
)

// Event types routed to the buyer projection.
const (
	TypePurchaseGig    = "purchase-gig"
	TypeCancelPurchase = "cancel-purchase"
)

// Review fanout types. The secondary discriminator distinguishes which side
// of the order wrote the review; seller rating buckets only move on a
// buyer-review.
const (
	TypeBuyerReview  = "buyer-review"
	TypeSellerReview = "seller-review"
)

// Remaining event families.
const (
	TypeUpdateGig  = "update-gig"
	TypeSeedGigs   = "seed-gigs"
	TypeAuthEmail  = "auth-email"
	TypeOrderEmail = "order-email"
	TypeChat       = "chat-message"
	TypeOrderAlert = "order-notification"
)

// SellerUpdate carries counter deltas for the seller projection. The deltas
// are signed: an approval ships ongoingJobs:-1 together with completedJobs:1.
type SellerUpdate struct {
	Type           string     `json:"type"`
	SellerID       string     `json:"sellerId"`
	OngoingJobs    int        `json:"ongoingJobs,omitempty"`
	CompletedJobs  int        `json:"completedJobs,omitempty"`
	CancelledJobs  int        `json:"cancelledJobs,omitempty"`
	TotalEarnings  float64    `json:"totalEarnings,omitempty"`
	TotalGigs      int        `json:"totalGigs,omitempty"`
	RecentDelivery *time.Time `json:"recentDelivery,omitempty"`
}

// BuyerUpdate adds or removes a gig from the buyer's purchase history.
type BuyerUpdate struct {
	Type    string `json:"type"`
	BuyerID string `json:"buyerId"`
	GigID   string `json:"purchasedGigId"`
}

// Review is broadcast on the review fanout exchange. Three independent
// consumers project it: seller rating buckets, gig rating buckets in the
// search index, and the order's embedded review.
type Review struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"orderId"`
	GigID     string    `json:"gigId"`
	SellerID  string    `json:"sellerId"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
}

// Email instructs the notifier which template to render and where to send it.
// Template-specific fields are optional.
type Email struct {
	Type        string  `json:"type"`
	Receiver    string  `json:"receiverEmail"`
	Template    string  `json:"template"`
	Username    string  `json:"username,omitempty"`
	VerifyLink  string  `json:"verifyLink,omitempty"`
	ResetLink   string  `json:"resetLink,omitempty"`
	OrderID     string  `json:"orderId,omitempty"`
	OrderURL    string  `json:"orderUrl,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	BuyerName   string  `json:"buyerUsername,omitempty"`
	SellerName  string  `json:"sellerUsername,omitempty"`
}

// SeedRequest asks the gig service to bulk-create sample gigs.
type SeedRequest struct {
	Type    string   `json:"type"`
	Count   int      `json:"count"`
	Sellers []string `json:"sellers,omitempty"`
}

// Chat is a chat message relayed to the gateway socket hub.
type Chat struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"senderUsername"`
	Receiver       string    `json:"receiverUsername"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sentAt"`
}

// OrderAlert is an order state change pushed to the buyer's or seller's open
// socket through the gateway hub.
type OrderAlert struct {
	Type    string `json:"type"`
	UserTo  string `json:"userTo"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

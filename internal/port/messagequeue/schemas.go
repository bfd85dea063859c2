package messagequeue

// DeliveryCompletedPayload is the schema for delivery.completed messages.
type DeliveryCompletedPayload struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	TaskID    string `json:"task_id"`
	SourceID  string `json:"source_id"`
	Food      string `json:"food"`
	Earnings  int    `json:"earnings"`
	Coins     int    `json:"coins"`
}

// OrderReservedPayload is the schema for orders.reserved messages.
type OrderReservedPayload struct {
	OrderID      string `json:"order_id"`
	DonationID   string `json:"donation_id"`
	DonorID      string `json:"donor_id"`
	ReceiverID   string `json:"receiver_id"`
	PickupMethod string `json:"pickup_method"`
	DeliveryFee  int    `json:"delivery_fee"`
}

// RewardRedeemedPayload is the schema for rewards.redeemed messages.
type RewardRedeemedPayload struct {
	UserID        string `json:"user_id"`
	ItemID        string `json:"item_id"`
	Price         int    `json:"price"`
	TransactionID string `json:"transaction_id"`
}

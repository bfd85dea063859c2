package http

import (
	"github.com/Strob0t/foodshare/internal/service"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	defaultListLimit   = 20
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Profiles  *service.ProfileService
	Donations *service.DonationService
	Orders    *service.OrderService
	Rewards   *service.RewardService
	Uploads   *service.UploadService
	Delivery  *service.DeliveryService

	// MaxUploadBytes caps multipart image uploads.
	MaxUploadBytes int64
}

package config

// BookingConfig tunes the booking core.
type BookingConfig struct {
	// ApprovalRate is the probability in [0, 1] that the payment simulator
	// approves a charge.
	ApprovalRate float64
	// MaxPaymentAttempts caps payment attempts per booking.  0 means no cap.
	MaxPaymentAttempts int
	// ReferenceAttempts bounds retries on booking reference collisions.
	ReferenceAttempts int
}

func LoadBookingConfig() BookingConfig {
	c := BookingConfig{
		ApprovalRate:       envFloat("PAYMENT_APPROVAL_RATE", 0.8),
		MaxPaymentAttempts: envInt("PAYMENT_MAX_ATTEMPTS", 5),
		ReferenceAttempts:  envInt("BOOKING_REFERENCE_ATTEMPTS", 10),
	}
	if c.ApprovalRate < 0 || c.ApprovalRate > 1 {
		c.ApprovalRate = 0.8
	}
	if c.MaxPaymentAttempts < 0 {
		c.MaxPaymentAttempts = 0
	}
	if c.ReferenceAttempts < 1 {
		c.ReferenceAttempts = 10
	}
	return c
}

package security

import (
	"fmt"
	"time"
)

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

type Report struct {
	SigningAlgorithm       string
	SessionTTL             time.Duration
	TwoFactorSessionTTL    time.Duration
	ResetTTL               time.Duration
	KeyRotationActive      bool
	Argon2                 PasswordReport
	HashUpgradeOnLogin     bool
	SoftLockout            string
	HardLockout            string
	TwoFactorCodeTTL       time.Duration
	TwoFactorLimiterActive bool
	ResetThrottleActive    bool
	ResetIPThrottleActive  bool
	AuditEnabled           bool
}

type ReportInput struct {
	SigningAlgorithm    string
	SessionTTL          time.Duration
	TwoFactorSessionTTL time.Duration
	ResetTTL            time.Duration
	VerifyKeyCount      int
	Password            PasswordReport
	UpgradeOnLogin      bool

	SoftThreshold int
	SoftDuration  time.Duration
	HardThreshold int
	HardDuration  time.Duration

	TwoFactorCodeTTL     time.Duration
	TwoFactorMaxAttempts int
	HasRedis             bool
	ResetIPThrottle      bool
	AuditEnabled         bool
}

func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:       input.SigningAlgorithm,
		SessionTTL:             input.SessionTTL,
		TwoFactorSessionTTL:    input.TwoFactorSessionTTL,
		ResetTTL:               input.ResetTTL,
		KeyRotationActive:      input.VerifyKeyCount > 0,
		Argon2:                 input.Password,
		HashUpgradeOnLogin:     input.UpgradeOnLogin,
		SoftLockout:            tier(input.SoftThreshold, input.SoftDuration),
		HardLockout:            tier(input.HardThreshold, input.HardDuration),
		TwoFactorCodeTTL:       input.TwoFactorCodeTTL,
		TwoFactorLimiterActive: input.HasRedis && input.TwoFactorMaxAttempts > 0,
		ResetThrottleActive:    input.HasRedis,
		ResetIPThrottleActive:  input.HasRedis && input.ResetIPThrottle,
		AuditEnabled:           input.AuditEnabled,
	}
}

// tier renders a lockout tier as "<attempts> attempts / <duration>".
func tier(threshold int, d time.Duration) string {
	if threshold <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d attempts / %s", threshold, d)
}

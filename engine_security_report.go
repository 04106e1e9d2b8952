package accountcore

import "github.com/MrEthical07/accountcore/internal/security"

// SecurityReport is a read-only summary of the engine's security posture.
// It never contains secrets.
type SecurityReport = security.Report

// SecurityReport returns the effective security settings of e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return security.BuildReport(e.config.securityReportInput(e.resetLimiter != nil))
}

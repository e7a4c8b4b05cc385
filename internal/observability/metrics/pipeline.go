package metrics

import "time"

// Build records a target build and its duration.
func Build(target, status string, d time.Duration) {
	if !enabled {
		return
	}
	buildTotal.WithLabelValues(target, status).Inc()
	buildDuration.WithLabelValues(target).Observe(d.Seconds())
}

// Deploy records a deployment outcome.
func Deploy(status string) {
	if !enabled {
		return
	}
	deployTotal.WithLabelValues(status).Inc()
}

// ReceiptWait records how long a receipt took to arrive.
func ReceiptWait(d time.Duration) {
	if !enabled {
		return
	}
	receiptWaitSeconds.Observe(d.Seconds())
}

// DeploymentRecord records a ledger write.
func DeploymentRecord(chain, status string) {
	if !enabled {
		return
	}
	deploymentRecordTotal.WithLabelValues(chain, status).Inc()
}

// Verification records a bytecode verification result.
func Verification(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

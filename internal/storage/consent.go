package storage

import (
	"time"

	"github.com/your-org/memento/internal/models"
)

// ApplyConsentUpdate computes the consent record after a partial update.
// consented_at is set (and revoked_at cleared) exactly when a flag goes
// false→true; revoked_at is set when a flag goes true→false. Fields left
// nil in the update keep their current value.
func ApplyConsentUpdate(current models.Consent, upd models.ConsentUpdate, now time.Time) models.Consent {
	next := current

	if upd.AllowProfileDisplay != nil && *upd.AllowProfileDisplay != current.AllowProfileDisplay {
		next.AllowProfileDisplay = *upd.AllowProfileDisplay
		if *upd.AllowProfileDisplay {
			next.ConsentedAt = &now
			next.RevokedAt = nil
		} else {
			next.RevokedAt = &now
		}
	}

	if upd.AllowRecognition != nil && *upd.AllowRecognition != current.AllowRecognition {
		next.AllowRecognition = *upd.AllowRecognition
		if *upd.AllowRecognition {
			next.ConsentedAt = &now
			next.RevokedAt = nil
		} else {
			next.RevokedAt = &now
		}
	}

	return next
}

package serializer

import (
	"time"

	"github.com/usman-khan12/one-shot/internal/transfer"
)

// Receipt returns the serialized form of the given upload receipt.
func Receipt(r *transfer.Receipt) map[string]interface{} {
	return map[string]interface{}{
		"success":      true,
		"file_id":      r.ID,
		"download_url": r.Locator,
		"ttl_seconds":  r.TTLSeconds,
		"expires_at":   r.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// Info returns the serialized form of the given object description.
func Info(i *transfer.Info) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"file_data": map[string]interface{}{
			"original_name":         i.OriginalName,
			"size":                  i.Size,
			"content_type":          i.ContentType,
			"created_at":            i.CreatedAt.UTC().Format(time.RFC3339),
			"ttl_seconds_remaining": int64(i.TTLRemaining / time.Second),
		},
	}
}

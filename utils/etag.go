package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/event-manager-go/models"
)

// GenerateETag builds a weak validator from a document id and its last update.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(id.Hex() + ":" + strconv.FormatInt(updatedAt.UnixNano(), 10)))
	return fmt.Sprintf(`W/"%s"`, hex.EncodeToString(sum[:8]))
}

// GenerateListETag fingerprints a whole result set. Every (id, updatedAt)
// pair is hashed, so removals change the tag as well as edits.
func GenerateListETag(events []models.Event) string {
	h := sha1.New()
	fmt.Fprintf(h, "%d", len(events))
	for _, e := range events {
		fmt.Fprintf(h, "|%s:%d", e.ID.Hex(), e.UpdatedAt.UnixNano())
	}
	return fmt.Sprintf(`W/"%s"`, hex.EncodeToString(h.Sum(nil)[:8]))
}

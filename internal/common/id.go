package common

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewJobID generates a unique job ID.
// Format: job_<unix-millis>_<8 random alphanumerics>
func NewJobID() string {
	var sb strings.Builder
	sb.WriteString("job_")
	sb.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	sb.WriteByte('_')
	for i := 0; i < 8; i++ {
		sb.WriteByte(jobIDAlphabet[rand.Intn(len(jobIDAlphabet))])
	}
	return sb.String()
}

// NewDebugID generates a unique debug record ID with the "dbg_" prefix
// Format: dbg_<uuid>
func NewDebugID() string {
	return "dbg_" + uuid.New().String()
}

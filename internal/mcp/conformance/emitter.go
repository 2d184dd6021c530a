package conformance

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/mcp-conformance-harness/internal/domain"
)

// Emitter writes records as JSON lines
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

var _ domain.RecordSink = (*Emitter)(nil)

// NewEmitter creates an emitter writing to w
func NewEmitter(w io.Writer) *Emitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Emitter{w: w, enc: enc}
}

// Emit writes one record followed by a newline and flushes buffered writers, so a
// record is visible before the next scenario starts.
func (e *Emitter) Emit(record domain.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write %s record: %w", record.RecordType(), err)
	}
	if f, ok := e.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush %s record: %w", record.RecordType(), err)
		}
	}
	return nil
}

package petstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// exchange is one simulated upstream HTTP round trip
type exchange struct {
	Status      int
	Method      string
	URL         string
	RequestBody any
	Location    string
	Body        any
}

// Render lays the exchange out as human-readable text. The Headers block carries a
// per-response session cookie, so it differs on every call.
func (e exchange) Render() string {
	var b strings.Builder

	success := e.Status >= 200 && e.Status < 300
	if success {
		b.WriteString("HTTP ✅ Success\n\n")
	} else {
		b.WriteString("HTTP ❌ Error\n\n")
	}
	fmt.Fprintf(&b, "Status: %d %s\n", e.Status, http.StatusText(e.Status))

	if e.Method != "" && e.URL != "" {
		fmt.Fprintf(&b, "\nRequest: %s %s\n", strings.ToUpper(e.Method), e.URL)
		if e.RequestBody != nil {
			if body := prettyJSON(e.RequestBody); body != "{}" {
				b.WriteString("\nRequest Body:\n")
				b.WriteString(body)
				b.WriteString("\n")
			}
		}
	}

	body := ""
	if e.Body != nil {
		body = prettyJSON(e.Body)
	}

	b.WriteString("\nHeaders:\n")
	b.WriteString("  content-type: application/json\n")
	fmt.Fprintf(&b, "  content-length: %d\n", len(body))
	if e.Location != "" {
		fmt.Fprintf(&b, "  location: %s\n", e.Location)
	}
	fmt.Fprintf(&b, "  set-cookie: petstore_session=%s; Path=/; HttpOnly\n", uuid.NewString())

	b.WriteString("\nResponse Body:\n")
	if body == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(body)
	}
	return b.String()
}

func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// internal/render/render.go
package render

import (
	"fmt"
	"strings"
)

// recognizedVariables is the closed set of placeholder keys the renderer will
// substitute. Keys outside this list are never evaluated, even when a value
// is supplied for them.
var recognizedVariables = []string{
	"customer_name",
	"customer_email",
	"customer_phone",
	"customer_address",
	"order_number",
	"order_total",
	"order_date",
	"product_name",
	"product_price",
	"discount_code",
	"discount_amount",
	"website_name",
	"company_name",
	"unsubscribe_link",
}

// RecognizedVariables returns the placeholder keys available to campaign
// authors, in a stable order.
func RecognizedVariables() []string {
	out := make([]string, len(recognizedVariables))
	copy(out, recognizedVariables)
	return out
}

// Render substitutes {{key}} placeholders in text. The syntax is exact: no
// whitespace tolerance, case-sensitive key match. Only recognized keys that
// have a value in vars are replaced; everything else is left as a literal
// unresolved placeholder. Render never errors and never mutates its inputs.
func Render(text string, vars map[string]string) string {
	for _, key := range recognizedVariables {
		value, ok := vars[key]
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

// UnsubscribeURL builds the per-recipient unsubscribe link.
func UnsubscribeURL(baseURL, token string) string {
	return fmt.Sprintf("%s/unsubscribe/%s", strings.TrimRight(baseURL, "/"), token)
}

// TrackingPixelURL builds the open-tracking pixel URL for a recipient token.
func TrackingPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/track/open/%s", strings.TrimRight(baseURL, "/"), token)
}

// AppendTrackingPixel appends an invisible 1x1 pixel element to an HTML body.
func AppendTrackingPixel(html, baseURL, token string) string {
	pixel := fmt.Sprintf(
		`<img src="%s" width="1" height="1" style="display:none;" alt="" />`,
		TrackingPixelURL(baseURL, token),
	)
	return html + pixel
}

// SampleVariables returns the fixed sample data used by the admin preview
// action. The unsubscribe link is a dead anchor since no recipient exists yet.
func SampleVariables(websiteName string) map[string]string {
	if websiteName == "" {
		websiteName = "SportApp"
	}
	return map[string]string{
		"customer_name":    "John Doe",
		"customer_email":   "john@example.com",
		"customer_phone":   "+1 555 0100",
		"customer_address": "1 Main Street",
		"order_number":     "ORD-12345",
		"order_total":      "$99.99",
		"order_date":       "2024-01-01",
		"product_name":     "Trail Runner",
		"product_price":    "$59.99",
		"discount_code":    "WELCOME10",
		"discount_amount":  "10%",
		"website_name":     websiteName,
		"company_name":     websiteName,
		"unsubscribe_link": "#",
	}
}

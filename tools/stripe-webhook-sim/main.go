// Command stripe-webhook-sim sends a signed checkout.session.completed event
// to a locally running salon-api, for exercising the reconciliation path
// without the Stripe CLI.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "salon-api base url")
		cartID  = flag.String("cart-id", getenv("CART_ID", ""), "cart_id metadata")
		plan    = flag.String("plan", getenv("PAYMENT_PLAN", "Full"), "payment_plan metadata")
		paid    = flag.Bool("paid", true, "report the session as paid")
		secret  = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*cartID) == "" {
		fatal("CART_ID is required")
	}

	now := time.Now().UTC()
	paymentStatus := "unpaid"
	if *paid {
		paymentStatus = "paid"
	}
	payload := fmt.Sprintf(`{
		"id": "evt_test_%d",
		"object": "event",
		"created": %d,
		"type": "checkout.session.completed",
		"api_version": %q,
		"data": {
			"object": {
				"id": "cs_test_123",
				"object": "checkout.session",
				"payment_status": %q,
				"metadata": {
					"cart_id": %q,
					"payment_plan": %q
				}
			}
		}
	}`, now.UnixNano(), now.Unix(), stripe.APIVersion, paymentStatus, *cartID, *plan)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/payments/webhooks/stripe", bytes.NewReader([]byte(payload)))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	fmt.Printf("status=%d\n", resp.StatusCode)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

package client

import (
	"math/rand"
)

const rotatedUserAgentBase = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomUserAgent returns a browser User-Agent with a random suffix.
//
// The marketplace buckets rate limits by User-Agent, so the retry hook swaps
// in a fresh value after a 429. This sidesteps the server's throttling and may
// breach its terms of service; set Config.DisableUserAgentRotation to opt out.
func RandomUserAgent() string {
	suffix := make([]byte, 13)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return rotatedUserAgentBase + " " + string(suffix)
}

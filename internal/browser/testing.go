package browser

import "time"

// BrowserTestTimeout is the action timeout for browser tests. Never use a
// larger value in tests.
const BrowserTestTimeout = 5 * time.Second

package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// serviceLabel is stamped on every request line so lines stay attributable
// when several services write to one sink.
const serviceLabel = "planhub-authz"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide JSON-line logger. Lines go to stdout; the
// collector owns rotation and shipping.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one JSON line for a served HTTP request.
func LogRequest(entry map[string]any) {
	Logger().Println(requestLine(entry))
}

// requestLine renders the entry as a JSON object, adding the service label
// unless the caller set one.
func requestLine(entry map[string]any) string {
	if entry == nil {
		entry = make(map[string]any, 1)
	}
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceLabel
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return `{"service":"` + serviceLabel + `","level":"error","msg":"log marshal failed"}`
	}
	return string(data)
}

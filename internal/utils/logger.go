package utils

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"
)

func logLine(level, color, component, message string, args []interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	log.Printf("%s[%s]%s %s[%s]%s %s",
		color, level, ColorReset,
		ColorCyan, component, ColorReset,
		message)
}

func LogInfo(component, message string, args ...interface{}) {
	logLine("INFO", ColorBlue, component, message, args)
}

func LogSuccess(component, message string, args ...interface{}) {
	logLine("SUCCESS", ColorGreen, component, message, args)
}

func LogWarning(component, message string, args ...interface{}) {
	logLine("WARNING", ColorYellow, component, message, args)
}

func LogDebug(component, message string, args ...interface{}) {
	logLine("DEBUG", ColorPurple, component, message, args)
}

func LogError(component, message string, err error) {
	if err == nil {
		logLine("ERROR", ColorRed, component, message, nil)
		return
	}
	log.Printf("%s[ERROR]%s %s[%s]%s %s: %s%v%s",
		ColorRed, ColorReset,
		ColorCyan, component, ColorReset,
		message,
		ColorRed, err, ColorReset)
}

// LogRequest logs an inbound call. caller is an account id, "admin" or
// "anonymous"; never a bearer secret.
func LogRequest(method, path, caller string) {
	log.Printf("%s[REQUEST]%s %s%s%s %s | Caller: %s%s%s",
		ColorCyan, ColorReset,
		ColorWhite, method, ColorReset,
		path,
		ColorYellow, caller, ColorReset)
}

func LogResponse(path string, statusCode int, duration time.Duration) {
	color := ColorGreen
	if statusCode >= 400 && statusCode < 500 {
		color = ColorYellow
	} else if statusCode >= 500 {
		color = ColorRed
	}

	log.Printf("%s[RESPONSE]%s %s | Status: %s%d%s | Duration: %s%v%s",
		ColorGray, ColorReset,
		path,
		color, statusCode, ColorReset,
		ColorWhite, duration, ColorReset)
}

func LogDB(operation, detail string) {
	log.Printf("%s[DB]%s %s[%s]%s %s",
		ColorGray, ColorReset,
		ColorWhite, operation, ColorReset,
		detail)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

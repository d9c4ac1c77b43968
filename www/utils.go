package www

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/angas/solarforecast-go/energy"
	"github.com/angas/solarforecast-go/forecast"
)

var errNoReport = errors.New("no dataset loaded, upload a CSV file first")

func intOrDefault(u *url.URL, key string, defaultValue int) int {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// statusFor maps pipeline errors to the status the browser sees. Bad input is
// the caller's fault, anything else is ours.
func statusFor(err error) int {
	var verr *energy.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr),
		errors.Is(err, energy.ErrNoData),
		errors.Is(err, forecast.ErrInvalidHorizon):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// render executes the template into a buffer first so a failing template
// never leaves a half written page.
func render(w http.ResponseWriter, tm *TemplateManager, name string, data any) error {
	buf, err := tm.Execute(name, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}

package services

import "errors"

// Per-request lookup failures. None of them is fatal to the process.
var (
	ErrEmptyQuery         = errors.New("empty location query")
	ErrLocationNotFound   = errors.New("location not found")
	ErrGeocodeUnavailable = errors.New("geocoder unavailable")
	ErrWeatherUnavailable = errors.New("weather provider unavailable")
)

func outcomeForError(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrEmptyQuery):
		return outcomeEmptyQuery
	case errors.Is(err, ErrLocationNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrGeocodeUnavailable):
		return outcomeGeocodeUnavailable
	case errors.Is(err, ErrWeatherUnavailable):
		return outcomeWeatherUnavailable
	default:
		return "error"
	}
}

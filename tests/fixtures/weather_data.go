package fixtures

import (
	"encoding/json"
	"time"
)

// Canned provider payloads shared by unit and integration tests.
const (
	NominatimBostonResponse = `[{"place_id":297219425,"licence":"Data © OpenStreetMap contributors, ODbL 1.0. http://osm.org/copyright","osm_type":"relation","osm_id":2315704,"lat":"42.3554334","lon":"-71.060511","category":"boundary","type":"administrative","place_rank":16,"importance":0.79,"addresstype":"city","name":"Boston","display_name":"Boston, Suffolk County, Massachusetts, United States","boundingbox":["42.2279112","42.3969775","-71.1912506","-70.8044881"]}]`

	NominatimEmptyResponse = `[]`

	OpenWeatherBostonResponse = `{"coord":{"lon":-71.0605,"lat":42.3554},"weather":[{"id":802,"main":"Clouds","description":"partly cloudy","icon":"03d"}],"base":"stations","main":{"temp":46.44,"feels_like":42.1,"temp_min":44.2,"temp_max":48.3,"pressure":1016,"humidity":61},"visibility":10000,"wind":{"speed":9.22,"deg":250},"clouds":{"all":40},"dt":1700000000,"sys":{"country":"US"},"timezone":-18000,"id":4930956,"name":"Boston","cod":200}`

	// LegacyLocationsFile is a cache file in the on-disk format, including a negative entry.
	LegacyLocationsFile = `{"boston": {"display_name": "Boston, Suffolk County, Massachusetts, United States", "lat": "42.3554334", "lon": "-71.060511"}, "nowhereville": null}`
)

// OpenWeatherCurrentResponse is the subset of the OpenWeatherMap current
// weather payload the bot reads.
type OpenWeatherCurrentResponse struct {
	Dt      int64 `json:"dt"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Name string `json:"name"`
}

// NominatimPlace is one element of a Nominatim jsonv2 search response.
type NominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Type        string `json:"type"`
}

// GetMockWeatherResponse returns an OpenWeatherMap payload with the given
// Fahrenheit temperature and description.
func GetMockWeatherResponse(tempF float64, description string) string {
	response := OpenWeatherCurrentResponse{
		Dt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Unix(),
		Name: "Test City",
	}
	response.Main.Temp = tempF
	response.Main.Humidity = 60
	response.Weather = append(response.Weather, struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	}{Main: "Clouds", Description: description})

	data, _ := json.Marshal(response)
	return string(data)
}

// GetMockGeocodeResponse returns a Nominatim payload holding the given places.
func GetMockGeocodeResponse(places ...NominatimPlace) string {
	if places == nil {
		places = []NominatimPlace{}
	}
	data, _ := json.Marshal(places)
	return string(data)
}

// GetInvalidJSONResponse returns invalid JSON for error testing
func GetInvalidJSONResponse() string {
	return `{"invalid": json}`
}

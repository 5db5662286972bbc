// Package transform maps raw provider payloads onto the weather_data schema
// and derives the heat index and the category labels.
package transform

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"weatheretl/internal/models"
)

const (
	minTemperature = -100.0
	maxTemperature = 60.0
)

// Temperature labels, coldest first.
const (
	TempCold    = "Frio"
	TempMild    = "Ameno"
	TempHot     = "Quente"
	TempVeryHot = "Muito Quente"
)

// Humidity labels, driest first.
const (
	HumidityLow      = "Baixa"
	HumidityModerate = "Moderada"
	HumidityHigh     = "Alta"
)

var temperatureRank = map[string]int{TempCold: 0, TempMild: 1, TempHot: 2, TempVeryHot: 3}
var humidityRank = map[string]int{HumidityLow: 0, HumidityModerate: 1, HumidityHigh: 2}

// spellings the provider or the config may return without accents
var cityFixes = map[string]string{
	"Sao Paulo": "São Paulo",
	"Brasilia":  "Brasília",
	"Goiania":   "Goiânia",
	"Belem":     "Belém",
}

var lowerParticles = map[string]bool{"de": true, "da": true, "do": true, "das": true, "dos": true, "e": true}

// TransformError means the provider payload broke its contract; it is not
// worth retrying.
type TransformError struct {
	City  string
	Field string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform error for %s: field %s: %v", e.City, e.Field, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Transformer turns RawWeather into WeatherReading.
type Transformer struct {
	now func() time.Time
}

func NewTransformer() *Transformer {
	return &Transformer{now: time.Now}
}

// Transform maps raw onto a reading and fills the derived fields. It has no
// side effects besides reading the clock for processed_at.
func (t *Transformer) Transform(raw *models.RawWeather) (*models.WeatherReading, error) {
	if raw == nil {
		return nil, &TransformError{Field: "payload", Err: fmt.Errorf("is nil")}
	}
	city := raw.Name
	missing := func(field string) error {
		return &TransformError{City: city, Field: field, Err: fmt.Errorf("is missing")}
	}

	if raw.Main == nil {
		return nil, missing("main")
	}
	if raw.Main.Temp == nil {
		return nil, missing("temperature")
	}
	if raw.Main.Humidity == nil {
		return nil, missing("humidity")
	}
	if raw.Main.Pressure == nil {
		return nil, missing("pressure")
	}
	if strings.TrimSpace(raw.Name) == "" {
		return nil, missing("city_name")
	}
	if raw.Sys == nil || raw.Sys.Country == "" {
		return nil, missing("country_code")
	}
	if len(raw.Weather) == 0 || raw.Weather[0].Main == "" {
		return nil, missing("weather_main")
	}

	temp := *raw.Main.Temp
	if temp < minTemperature || temp > maxTemperature {
		return nil, &TransformError{City: city, Field: "temperature",
			Err: fmt.Errorf("%.2f outside [%.0f, %.0f]", temp, minTemperature, maxTemperature)}
	}
	humidity := *raw.Main.Humidity
	if humidity < 0 || humidity > 100 {
		return nil, &TransformError{City: city, Field: "humidity",
			Err: fmt.Errorf("%d outside [0, 100]", humidity)}
	}

	processedAt := t.now().UTC()
	extractedAt := raw.ExtractedAt.UTC()
	if raw.ExtractedAt.IsZero() {
		extractedAt = processedAt
	}
	if processedAt.Before(extractedAt) {
		processedAt = extractedAt
	}

	r := &models.WeatherReading{
		CityID:      raw.ID,
		CityName:    NormalizeCityName(raw.Name),
		CountryCode: raw.Sys.Country,

		Temperature:          temp,
		TemperatureFeelsLike: raw.Main.FeelsLike,
		TemperatureMin:       raw.Main.TempMin,
		TemperatureMax:       raw.Main.TempMax,
		Pressure:             *raw.Main.Pressure,
		Humidity:             humidity,
		SeaLevelPressure:     raw.Main.SeaLevel,
		GroundLevelPressure:  raw.Main.GrndLevel,

		WeatherMain:        raw.Weather[0].Main,
		WeatherDescription: raw.Weather[0].Description,
		WeatherIcon:        raw.Weather[0].Icon,

		Visibility:     raw.Visibility,
		DataTimestamp:  unixTime(raw.Dt),
		Sunrise:        unixTime(raw.Sys.Sunrise),
		Sunset:         unixTime(raw.Sys.Sunset),
		TimezoneOffset: raw.Timezone,
		ExtractedAt:    extractedAt,
		ProcessedAt:    processedAt,

		HeatIndex:           HeatIndex(temp, humidity),
		TemperatureCategory: TemperatureCategory(temp),
		HumidityCategory:    HumidityCategory(humidity),
	}

	if raw.Coord != nil {
		lat, lon := raw.Coord.Lat, raw.Coord.Lon
		r.Latitude, r.Longitude = &lat, &lon
	}
	if raw.Wind != nil {
		r.WindSpeed = raw.Wind.Speed
		r.WindDirection = raw.Wind.Deg
		r.WindGust = raw.Wind.Gust
	}
	if raw.Clouds != nil {
		r.Cloudiness = raw.Clouds.All
	}

	return r, nil
}

// HeatIndex is the simplified index T + 0.5*(H-50), rounded to two
// decimals. Humidity is clamped to [0, 100] so the result is total.
func HeatIndex(temperature float64, humidity int) float64 {
	h := math.Max(0, math.Min(100, float64(humidity)))
	return math.Round((temperature+0.5*(h-50))*100) / 100
}

// TemperatureCategory buckets °C: below 10, up to 25, up to 35, above.
func TemperatureCategory(temperature float64) string {
	switch {
	case temperature < 10:
		return TempCold
	case temperature <= 25:
		return TempMild
	case temperature <= 35:
		return TempHot
	default:
		return TempVeryHot
	}
}

// HumidityCategory buckets relative humidity: up to 30, below 60, 60 and up.
func HumidityCategory(humidity int) string {
	switch {
	case humidity <= 30:
		return HumidityLow
	case humidity < 60:
		return HumidityModerate
	default:
		return HumidityHigh
	}
}

// TemperatureRank orders temperature labels; unknown labels rank -1.
func TemperatureRank(category string) int {
	if r, ok := temperatureRank[category]; ok {
		return r
	}
	return -1
}

func HumidityRank(category string) int {
	if r, ok := humidityRank[category]; ok {
		return r
	}
	return -1
}

// NormalizeCityName title-cases each word, keeps Portuguese particles
// lower-case after the first word and restores known accents.
func NormalizeCityName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		lw := strings.ToLower(w)
		if i > 0 && lowerParticles[lw] {
			words[i] = lw
			continue
		}
		first, size := utf8.DecodeRuneInString(lw)
		words[i] = string(unicode.ToUpper(first)) + lw[size:]
	}

	normalized := strings.Join(words, " ")
	if fixed, ok := cityFixes[normalized]; ok {
		return fixed
	}
	return normalized
}

func unixTime(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0).UTC()
	return &t
}

package models

import "time"

// RawWeather is the current-weather payload returned by OpenWeatherMap.
// Pointer fields distinguish "absent" from zero.
type RawWeather struct {
	ID         *int64         `json:"id"`
	Name       string         `json:"name"`
	Coord      *RawCoord      `json:"coord"`
	Main       *RawMain       `json:"main"`
	Weather    []RawCondition `json:"weather"`
	Wind       *RawWind       `json:"wind"`
	Clouds     *RawClouds     `json:"clouds"`
	Visibility *int           `json:"visibility"`
	Dt         *int64         `json:"dt"`
	Sys        *RawSys        `json:"sys"`
	Timezone   *int           `json:"timezone"`

	// set by the client, not the provider
	ExtractedAt time.Time `json:"extracted_at"`
}

type RawCoord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type RawMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Pressure  *int     `json:"pressure"`
	Humidity  *int     `json:"humidity"`
	SeaLevel  *int     `json:"sea_level"`
	GrndLevel *int     `json:"grnd_level"`
}

type RawCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type RawWind struct {
	Speed *float64 `json:"speed"`
	Deg   *int     `json:"deg"`
	Gust  *float64 `json:"gust"`
}

type RawClouds struct {
	All *int `json:"all"`
}

type RawSys struct {
	Country string `json:"country"`
	Sunrise *int64 `json:"sunrise"`
	Sunset  *int64 `json:"sunset"`
}

// WeatherReading is one normalized observation for one city, the shape of a
// weather_data row.
type WeatherReading struct {
	ID          int64    `json:"id"`
	CityID      *int64   `json:"city_id"`
	CityName    string   `json:"city_name"`
	CountryCode string   `json:"country_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`

	Temperature          float64  `json:"temperature"`
	TemperatureFeelsLike *float64 `json:"temperature_feels_like"`
	TemperatureMin       *float64 `json:"temperature_min"`
	TemperatureMax       *float64 `json:"temperature_max"`
	Pressure             int      `json:"pressure"`
	Humidity             int      `json:"humidity"`
	SeaLevelPressure     *int     `json:"sea_level_pressure"`
	GroundLevelPressure  *int     `json:"ground_level_pressure"`

	WeatherMain        string `json:"weather_main"`
	WeatherDescription string `json:"weather_description"`
	WeatherIcon        string `json:"weather_icon"`

	WindSpeed     *float64 `json:"wind_speed"`
	WindDirection *int     `json:"wind_direction"`
	WindGust      *float64 `json:"wind_gust"`
	Cloudiness    *int     `json:"cloudiness"`
	Visibility    *int     `json:"visibility"`

	DataTimestamp  *time.Time `json:"data_timestamp"`
	Sunrise        *time.Time `json:"sunrise"`
	Sunset         *time.Time `json:"sunset"`
	TimezoneOffset *int       `json:"timezone_offset"`
	ExtractedAt    time.Time  `json:"extracted_at"`
	ProcessedAt    time.Time  `json:"processed_at"`

	HeatIndex           float64 `json:"heat_index"`
	TemperatureCategory string  `json:"temperature_category"`
	HumidityCategory    string  `json:"humidity_category"`

	// assigned by the store on insert
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus is the lifecycle state of an etl_logs row.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunLog is one etl_logs row. RecordsInserted is negative for cleanup
// audit rows, where it holds the number of readings deleted.
type RunLog struct {
	ID              int64      `json:"id"`
	ExecutionID     string     `json:"execution_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Status          RunStatus  `json:"status"`
	CitiesProcessed int        `json:"cities_processed"`
	RecordsInserted int        `json:"records_inserted"`
	ErrorMessage    *string    `json:"error_message"`
}

// StatsOverview aggregates the whole weather_data table.
type StatsOverview struct {
	TotalRecords   int64      `json:"total_records"`
	TotalCities    int64      `json:"total_cities"`
	OldestRecord   *time.Time `json:"oldest_record"`
	NewestRecord   *time.Time `json:"newest_record"`
	AvgTemperature *float64   `json:"avg_temperature"`
	MinTemperature *float64   `json:"min_temperature"`
	MaxTemperature *float64   `json:"max_temperature"`
	AvgHumidity    *float64   `json:"avg_humidity"`
}

type CityStats struct {
	CityName       string     `json:"city_name"`
	RecordCount    int64      `json:"record_count"`
	AvgTemperature *float64   `json:"avg_temperature"`
	LastUpdate     *time.Time `json:"last_update"`
}

// WeatherStats is the /weather/stats payload.
type WeatherStats struct {
	StatsOverview
	Cities []CityStats `json:"cities"`
}

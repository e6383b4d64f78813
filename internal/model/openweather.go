package model

// OpenWeatherResponse - схема ответа /data/2.5/weather.
// Указатели позволяют отличить отсутствующее поле от нулевого значения.
type OpenWeatherResponse struct {
	Name *string `json:"name"`
	Sys  *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
}

// OpenWeatherError - тело ответа при ошибке ({"cod":"404","message":"city not found"})
type OpenWeatherError struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}

// Record проверяет схему и собирает WeatherRecord целиком.
// Частично заполненная запись никогда не возвращается.
func (r *OpenWeatherResponse) Record() (WeatherRecord, error) {
	switch {
	case r.Name == nil:
		return WeatherRecord{}, &ParseError{Field: "name"}
	case r.Sys == nil || r.Sys.Country == nil:
		return WeatherRecord{}, &ParseError{Field: "sys.country"}
	case r.Main == nil || r.Main.Temp == nil:
		return WeatherRecord{}, &ParseError{Field: "main.temp"}
	case r.Main.Humidity == nil:
		return WeatherRecord{}, &ParseError{Field: "main.humidity"}
	case r.Wind == nil || r.Wind.Speed == nil:
		return WeatherRecord{}, &ParseError{Field: "wind.speed"}
	case len(r.Weather) == 0 || r.Weather[0].Description == nil:
		return WeatherRecord{}, &ParseError{Field: "weather[0].description"}
	}

	return WeatherRecord{
		City:        *r.Name,
		Country:     *r.Sys.Country,
		Temperature: *r.Main.Temp,
		Humidity:    *r.Main.Humidity,
		WindSpeed:   *r.Wind.Speed,
		Description: *r.Weather[0].Description,
	}, nil
}

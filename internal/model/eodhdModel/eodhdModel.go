package eodhdModel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexFloat64 accepts numbers, numeric strings and "NA".
type FlexFloat64 float64

func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexFloat64(num)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		num, err = strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat64(num)
		return nil
	}

	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

type RealTime struct {
	Code          string      `json:"code"`
	Timestamp     FlexFloat64 `json:"timestamp"`
	Close         FlexFloat64 `json:"close"`
	PreviousClose FlexFloat64 `json:"previousClose"`
}

// RealTimeList is returned as a bare object for one ticker and as an array
// for several; both decode into a slice.
type RealTimeList []RealTime

func (l *RealTimeList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []RealTime
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}

	var single RealTime
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = RealTimeList{single}
	return nil
}

type BulkEOD struct {
	Code          string      `json:"code"`
	ExchangeShort string      `json:"exchange_short"`
	Date          string      `json:"date"`
	Close         FlexFloat64 `json:"close"`
	AdjustedClose FlexFloat64 `json:"adjusted_close"`
}

type Fundamentals struct {
	General struct {
		Code string `json:"Code"`
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"General"`
	Highlights struct {
		PERatio FlexFloat64 `json:"PERatio"`
	} `json:"Highlights"`
}

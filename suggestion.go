// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Suggestion is a single record returned by the service.
//
// Value may be truncated by location constraints; UnrestrictedValue is
// always the full canonical text. Data holds the type-specific record
// and is read either by path with [Suggestion.Field] or decoded with
// [DecodeData].
type Suggestion struct {
	Value             string          `json:"value"`
	UnrestrictedValue string          `json:"unrestricted_value"`
	Data              json.RawMessage `json:"data"`
}

// Field returns the value of data at the given gjson path.
func (s Suggestion) Field(path string) gjson.Result {
	return gjson.GetBytes(s.Data, path)
}

// FieldString is like [Suggestion.Field] but returns the value as a
// string, or "" when the field is missing or null.
func (s Suggestion) FieldString(path string) string {
	res := s.Field(path)
	if res.Type == gjson.Null {
		return ""
	}
	return res.String()
}

// hasData reports whether data is a non-null JSON object.
func (s Suggestion) hasData() bool {
	return gjson.ParseBytes(s.Data).IsObject()
}

// clone returns a deep copy so that rewriting Value or Data never
// touches the record held by the cache.
func (s Suggestion) clone() Suggestion {
	s.Data = bytes.Clone(s.Data)
	return s
}

// DecodeData decodes the data of s into a value of type T.
func DecodeData[T any](s Suggestion) (T, error) {
	var value T
	if len(s.Data) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(s.Data, &value); err != nil {
		return value, &ParseError{Err: err}
	}
	return value, nil
}

// AddressData is the data of an address suggestion.
type AddressData struct {
	PostalCode         string  `json:"postal_code"`
	Country            string  `json:"country"`
	RegionFiasID       string  `json:"region_fias_id"`
	RegionKladrID      string  `json:"region_kladr_id"`
	RegionWithType     string  `json:"region_with_type"`
	RegionType         string  `json:"region_type"`
	Region             string  `json:"region"`
	AreaWithType       *string `json:"area_with_type"`
	CityFiasID         *string `json:"city_fias_id"`
	CityWithType       *string `json:"city_with_type"`
	CityType           *string `json:"city_type"`
	City               *string `json:"city"`
	CityDistrict       *string `json:"city_district"`
	SettlementWithType *string `json:"settlement_with_type"`
	Settlement         *string `json:"settlement"`
	StreetWithType     *string `json:"street_with_type"`
	Street             *string `json:"street"`
	House              *string `json:"house"`
	Block              *string `json:"block"`
	Flat               *string `json:"flat"`
	FiasID             string  `json:"fias_id"`
	KladrID            string  `json:"kladr_id"`
	GeoLat             *string `json:"geo_lat"`
	GeoLon             *string `json:"geo_lon"`
	QC                 *string `json:"qc"`
	QCGeo              *string `json:"qc_geo"`
}

// PartyData is the data of a company ("party") suggestion.
type PartyData struct {
	HID  string `json:"hid"`
	INN  string `json:"inn"`
	KPP  string `json:"kpp"`
	OGRN string `json:"ogrn"`
	Type string `json:"type"`
	Name struct {
		FullWithOPF  string `json:"full_with_opf"`
		ShortWithOPF string `json:"short_with_opf"`
	} `json:"name"`
	Address *Suggestion `json:"address"`
	QC      *int        `json:"qc"`
}

// BankData is the data of a bank suggestion.
type BankData struct {
	BIC                  string      `json:"bic"`
	SWIFT                string      `json:"swift"`
	INN                  string      `json:"inn"`
	CorrespondentAccount string      `json:"correspondent_account"`
	Address              *Suggestion `json:"address"`
	QC                   *int        `json:"qc"`
}

// NameData is the data of a person name ("fio") suggestion.
type NameData struct {
	Surname    *string `json:"surname"`
	Name       *string `json:"name"`
	Patronymic *string `json:"patronymic"`
	Gender     string  `json:"gender"`
	QC         *string `json:"qc"`
}

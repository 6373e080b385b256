package domain

// Field is a canonical, source-independent column identifier. Every source
// maps its native columns onto this shared set.
type Field string

const (
	FieldDate           Field = "date"
	FieldFIPS           Field = "fips"
	FieldState          Field = "state"
	FieldCounty         Field = "county"
	FieldCountry        Field = "country"
	FieldAggregateLevel Field = "aggregate_level"

	FieldCases                Field = "cases"
	FieldDeaths               Field = "deaths"
	FieldRecovered            Field = "recovered"
	FieldNegativeTests        Field = "negative_tests"
	FieldPositiveTests        Field = "positive_tests"
	FieldTotalTests           Field = "total_tests"
	FieldStaffedBeds          Field = "staffed_beds"
	FieldHospitalBedsInUseAny Field = "hospital_beds_in_use_any"
	FieldCurrentHospitalized  Field = "current_hospitalized"
	FieldICUBeds              Field = "icu_beds"
	FieldCurrentICUTotal      Field = "current_icu_total"
	FieldCurrentICU           Field = "current_icu"
	FieldCurrentVentilated    Field = "current_ventilated"
	FieldModelAbbr            Field = "model_abbr"
	FieldForecastDate         Field = "forecast_date"
	FieldQuantile             Field = "quantile"
	FieldWeeklyNewCases       Field = "weekly_new_cases"
	FieldWeeklyNewDeaths      Field = "weekly_new_deaths"
)

// Aggregation levels tagged onto resolved rows.
const (
	LevelCounty = "county"
	LevelState  = "state"
)

// Country is the only country the feeds cover.
const Country = "USA"

// Kind describes how values of a field are typed.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindNumber
)

var fieldKinds = map[Field]Kind{
	FieldDate:         KindDate,
	FieldForecastDate: KindDate,

	FieldFIPS:           KindText,
	FieldState:          KindText,
	FieldCounty:         KindText,
	FieldCountry:        KindText,
	FieldAggregateLevel: KindText,
	FieldModelAbbr:      KindText,

	FieldCases:                KindNumber,
	FieldDeaths:               KindNumber,
	FieldRecovered:            KindNumber,
	FieldNegativeTests:        KindNumber,
	FieldPositiveTests:        KindNumber,
	FieldTotalTests:           KindNumber,
	FieldStaffedBeds:          KindNumber,
	FieldHospitalBedsInUseAny: KindNumber,
	FieldCurrentHospitalized:  KindNumber,
	FieldICUBeds:              KindNumber,
	FieldCurrentICUTotal:      KindNumber,
	FieldCurrentICU:           KindNumber,
	FieldCurrentVentilated:    KindNumber,
	FieldQuantile:             KindNumber,
	FieldWeeklyNewCases:       KindNumber,
	FieldWeeklyNewDeaths:      KindNumber,
}

// Kind reports the value kind of the field. Fields built at runtime, such as
// the quantile-suffixed forecast columns, are numeric.
func (f Field) Kind() Kind {
	if k, ok := fieldKinds[f]; ok {
		return k
	}
	return KindNumber
}

// TimeseriesKeys is the unique row key of the case datasets.
var TimeseriesKeys = []Field{FieldFIPS, FieldDate}

// ForecastKeys is the unique row key of the wide forecast dataset.
var ForecastKeys = []Field{FieldFIPS, FieldDate, FieldModelAbbr, FieldForecastDate}

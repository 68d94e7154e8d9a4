package migrate

import (
	"fmt"
	"strings"
)

// SourceType is a PostgreSQL data type as reported by information_schema.columns.data_type
type SourceType string

// Known source types. A dialect must map every one of them.
const (
	TypeSmallint    SourceType = "smallint"
	TypeInteger     SourceType = "integer"
	TypeBigint      SourceType = "bigint"
	TypeNumeric     SourceType = "numeric"
	TypeReal        SourceType = "real"
	TypeDouble      SourceType = "double precision"
	TypeMoney       SourceType = "money"
	TypeVarchar     SourceType = "character varying"
	TypeChar        SourceType = "character"
	TypeText        SourceType = "text"
	TypeBoolean     SourceType = "boolean"
	TypeDate        SourceType = "date"
	TypeTimestamp   SourceType = "timestamp without time zone"
	TypeTimestampTZ SourceType = "timestamp with time zone"
	TypeTime        SourceType = "time without time zone"
	TypeTimeTZ      SourceType = "time with time zone"
	TypeInterval    SourceType = "interval"
	TypeJSON        SourceType = "json"
	TypeJSONB       SourceType = "jsonb"
	TypeUUID        SourceType = "uuid"
	TypeBytea       SourceType = "bytea"
	TypeInet        SourceType = "inet"
	TypeArray       SourceType = "ARRAY"
	TypeUserDefined SourceType = "USER-DEFINED"

	// TypeUnknown marks a data type outside the enumeration
	TypeUnknown SourceType = ""
)

// FallbackType is the target type for columns whose source type is unknown
const FallbackType = "TEXT"

// KnownSourceTypes lists every enumerated source type
var KnownSourceTypes = []SourceType{
	TypeSmallint, TypeInteger, TypeBigint, TypeNumeric, TypeReal, TypeDouble, TypeMoney,
	TypeVarchar, TypeChar, TypeText, TypeBoolean,
	TypeDate, TypeTimestamp, TypeTimestampTZ, TypeTime, TypeTimeTZ, TypeInterval,
	TypeJSON, TypeJSONB, TypeUUID, TypeBytea, TypeInet, TypeArray, TypeUserDefined,
}

var knownByName = func() map[string]SourceType {
	m := make(map[string]SourceType, len(KnownSourceTypes))
	for _, t := range KnownSourceTypes {
		m[strings.ToLower(string(t))] = t
	}
	return m
}()

// ParseSourceType resolves a data_type string, returning TypeUnknown for
// anything outside the enumeration.
func ParseSourceType(dataType string) SourceType {
	if t, ok := knownByName[strings.ToLower(strings.TrimSpace(dataType))]; ok {
		return t
	}
	return TypeUnknown
}

// TypeMapping translates source types to target column types
type TypeMapping map[SourceType]func(c Column) string

// Translate returns the target type for c. fallback is true when the source
// type is unknown and FallbackType was used.
func (m TypeMapping) Translate(c Column) (target string, fallback bool) {
	if fn, ok := m[ParseSourceType(c.DataType)]; ok {
		return fn(c), false
	}
	return FallbackType, true
}

// Missing returns the known source types the mapping does not cover
func (m TypeMapping) Missing() []SourceType {
	var missing []SourceType
	for _, t := range KnownSourceTypes {
		if _, ok := m[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

func fixed(name string) func(Column) string {
	return func(Column) string { return name }
}

func sized(name string, def int64) func(Column) string {
	return func(c Column) string {
		n := def
		if c.Length != nil && *c.Length > 0 {
			n = *c.Length
		}
		return fmt.Sprintf("%s(%d)", name, n)
	}
}

func decimal(c Column) string {
	if c.Precision == nil || *c.Precision <= 0 {
		return "DECIMAL(10,2)"
	}
	var scale int64
	if c.Scale != nil {
		scale = *c.Scale
	}
	return fmt.Sprintf("DECIMAL(%d,%d)", *c.Precision, scale)
}

// mysqlTypes maps source types onto MySQL 8 column types
var mysqlTypes = TypeMapping{
	TypeSmallint:    fixed("SMALLINT"),
	TypeInteger:     fixed("INT"),
	TypeBigint:      fixed("BIGINT"),
	TypeNumeric:     decimal,
	TypeReal:        fixed("FLOAT"),
	TypeDouble:      fixed("DOUBLE"),
	TypeMoney:       fixed("DECIMAL(19,2)"),
	TypeVarchar:     sized("VARCHAR", 255),
	TypeChar:        sized("CHAR", 1),
	TypeText:        fixed("TEXT"),
	TypeBoolean:     fixed("TINYINT(1)"),
	TypeDate:        fixed("DATE"),
	TypeTimestamp:   fixed("DATETIME(6)"),
	TypeTimestampTZ: fixed("DATETIME(6)"),
	TypeTime:        fixed("TIME(6)"),
	TypeTimeTZ:      fixed("TIME(6)"),
	TypeInterval:    fixed("VARCHAR(255)"),
	TypeJSON:        fixed("JSON"),
	TypeJSONB:       fixed("JSON"),
	TypeUUID:        fixed("CHAR(36)"),
	TypeBytea:       fixed("LONGBLOB"),
	TypeInet:        fixed("VARCHAR(45)"),
	TypeArray:       fixed("JSON"),
	TypeUserDefined: fixed("VARCHAR(255)"),
}

// sqliteTypes maps source types onto SQLite declared types. JSON is stored
// as TEXT so the column keeps text affinity.
var sqliteTypes = TypeMapping{
	TypeSmallint:    fixed("INTEGER"),
	TypeInteger:     fixed("INTEGER"),
	TypeBigint:      fixed("INTEGER"),
	TypeNumeric:     decimal,
	TypeReal:        fixed("REAL"),
	TypeDouble:      fixed("REAL"),
	TypeMoney:       fixed("DECIMAL(19,2)"),
	TypeVarchar:     sized("VARCHAR", 255),
	TypeChar:        sized("CHAR", 1),
	TypeText:        fixed("TEXT"),
	TypeBoolean:     fixed("BOOLEAN"),
	TypeDate:        fixed("DATE"),
	TypeTimestamp:   fixed("DATETIME"),
	TypeTimestampTZ: fixed("DATETIME"),
	TypeTime:        fixed("TIME"),
	TypeTimeTZ:      fixed("TIME"),
	TypeInterval:    fixed("TEXT"),
	TypeJSON:        fixed("TEXT"),
	TypeJSONB:       fixed("TEXT"),
	TypeUUID:        fixed("CHAR(36)"),
	TypeBytea:       fixed("BLOB"),
	TypeInet:        fixed("VARCHAR(45)"),
	TypeArray:       fixed("TEXT"),
	TypeUserDefined: fixed("TEXT"),
}

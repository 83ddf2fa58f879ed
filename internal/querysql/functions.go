package querysql

// Canonical functions. Arguments:
//
//	StartsWith(s, prefix)  EndsWith(s, suffix)  Contains(s, part)
//	ToUpper(s)  ToLower(s)  Trim(s)  Length(s)
//	Substring(s, start, length)   start counts from 1
//	Year(d)  Month(d)  Day(d)
//	DiffYears(from, to)  DiffDays(from, to)
//	CurrentDateTime()  HasValue(x)  Abs(x)  Round(x, digits)
//	Atc(part, s)           case-insensitive position of part, 0 if absent
//
// A function missing from a dialect's table fails emission with
// UNSUPPORTED_FUNCTION.

var vfpFunctions = map[string]string{
	"StartsWith":      "LEFT({0}, LEN({1})) == {1}",
	"EndsWith":        "RIGHT({0}, LEN({1})) == {1}",
	"Contains":        "AT({1}, {0}) > 0",
	"ToUpper":         "UPPER({0})",
	"ToLower":         "LOWER({0})",
	"Trim":            "ALLTRIM({0})",
	"Length":          "LEN({0})",
	"Substring":       "SUBSTR({0}, {1}, {2})",
	"Year":            "YEAR({0})",
	"Month":           "MONTH({0})",
	"Day":             "DAY({0})",
	"DiffYears":       "YEAR({1}) - YEAR({0})",
	"DiffDays":        "TTOD({1}) - TTOD({0})",
	"CurrentDateTime": "DATETIME()",
	"HasValue":        "NOT ISNULL({0})",
	"Abs":             "ABS({0})",
	"Round":           "ROUND({0}, {1})",
	"Atc":             "ATC({0}, {1})",
}

var sqliteFunctions = map[string]string{
	"StartsWith":      "substr({0}, 1, length({1})) = {1}",
	"EndsWith":        "substr({0}, -length({1})) = {1}",
	"Contains":        "instr({0}, {1}) > 0",
	"ToUpper":         "upper({0})",
	"ToLower":         "lower({0})",
	"Trim":            "trim({0})",
	"Length":          "length({0})",
	"Substring":       "substr({0}, {1}, {2})",
	"Year":            "CAST(strftime('%Y', {0}) AS INTEGER)",
	"Month":           "CAST(strftime('%m', {0}) AS INTEGER)",
	"Day":             "CAST(strftime('%d', {0}) AS INTEGER)",
	"DiffYears":       "CAST(strftime('%Y', {1}) AS INTEGER) - CAST(strftime('%Y', {0}) AS INTEGER)",
	"DiffDays":        "CAST(julianday({1}) - julianday({0}) AS INTEGER)",
	"CurrentDateTime": "datetime('now')",
	"HasValue":        "{0} IS NOT NULL",
	"Abs":             "abs({0})",
	"Round":           "round({0}, {1})",
}

var postgresFunctions = map[string]string{
	"StartsWith":      "left({0}, length({1})) = {1}",
	"EndsWith":        "right({0}, length({1})) = {1}",
	"Contains":        "strpos({0}, {1}) > 0",
	"ToUpper":         "upper({0})",
	"ToLower":         "lower({0})",
	"Trim":            "trim({0})",
	"Length":          "length({0})",
	"Substring":       "substr({0}, {1}, {2})",
	"Year":            "CAST(EXTRACT(YEAR FROM {0}) AS INTEGER)",
	"Month":           "CAST(EXTRACT(MONTH FROM {0}) AS INTEGER)",
	"Day":             "CAST(EXTRACT(DAY FROM {0}) AS INTEGER)",
	"DiffYears":       "CAST(EXTRACT(YEAR FROM {1}) - EXTRACT(YEAR FROM {0}) AS INTEGER)",
	"DiffDays":        "CAST({1} AS DATE) - CAST({0} AS DATE)",
	"CurrentDateTime": "LOCALTIMESTAMP",
	"HasValue":        "{0} IS NOT NULL",
	"Abs":             "abs({0})",
	"Round":           "round({0}, {1})",
}

var mysqlFunctions = map[string]string{
	"StartsWith":      "LEFT({0}, CHAR_LENGTH({1})) = {1}",
	"EndsWith":        "RIGHT({0}, CHAR_LENGTH({1})) = {1}",
	"Contains":        "LOCATE({1}, {0}) > 0",
	"ToUpper":         "UPPER({0})",
	"ToLower":         "LOWER({0})",
	"Trim":            "TRIM({0})",
	"Length":          "CHAR_LENGTH({0})",
	"Substring":       "SUBSTRING({0}, {1}, {2})",
	"Year":            "YEAR({0})",
	"Month":           "MONTH({0})",
	"Day":             "DAY({0})",
	"DiffYears":       "TIMESTAMPDIFF(YEAR, {0}, {1})",
	"DiffDays":        "DATEDIFF({1}, {0})",
	"CurrentDateTime": "NOW()",
	"HasValue":        "{0} IS NOT NULL",
	"Abs":             "ABS({0})",
	"Round":           "ROUND({0}, {1})",
	"Atc":             "LOCATE({0}, {1})",
}

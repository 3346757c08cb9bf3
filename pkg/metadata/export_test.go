package metadata

var (
	ParseExifTime = parseExifTime
	DMSToDecimal  = dmsToDecimal
)

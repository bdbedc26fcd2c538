package remoteid

// IDType is the kind of identifier carried by a Basic ID message.
type IDType uint8

const (
	IDTypeNone IDType = iota
	IDTypeSerialNumber
	IDTypeCAARegistrationID
	IDTypeUTMAssignedUUID
	IDTypeSpecificSessionID
)

var idTypeLabels = labels{
	"None",
	"Serial number",
	"CAA registration ID",
	"UTM assigned UUID",
	"Specific session ID",
}

func (t IDType) Interpret() Value { return idTypeLabels.interpret(uint8(t)) }
func (t IDType) String() string   { return t.Interpret().String() }

// UavType is the airframe category.
type UavType uint8

const (
	UavTypeNone UavType = iota
	UavTypeAeroplane
	UavTypeCopter
	UavTypeGyroplane
	UavTypeHybridLift
	UavTypeOrnithopter
	UavTypeGlider
	UavTypeKite
	UavTypeFreeBalloon
	UavTypeCaptiveBalloon
	UavTypeAirship
	UavTypeFreeFallParachute
	UavTypeRocket
	UavTypeTetheredPoweredAircraft
	UavTypeGroundObstacle
)

var uavTypeLabels = labels{
	"None",
	"Aeroplane",
	"Copter",
	"Gyroplane",
	"Hybrid",
	"Ornithopter",
	"Glider",
	"Kite",
	"Free balloon",
	"Captive balloon",
	"Airship",
	"Free fall parachute",
	"Rocket",
	"Tethered powered aircraft",
	"Ground obstacle",
}

func (t UavType) Interpret() Value { return uavTypeLabels.interpret(uint8(t)) }
func (t UavType) String() string   { return t.Interpret().String() }

// UavStatus is the operational status from the Location message.
type UavStatus uint8

const (
	StatusUndeclared UavStatus = iota
	StatusGround
	StatusAirborne
	StatusEmergency
	StatusFailure
)

var uavStatusLabels = labels{"Undeclared", "Ground", "Airborne", "Emergency", "Failure"}

func (s UavStatus) Interpret() Value { return uavStatusLabels.interpret(uint8(s)) }
func (s UavStatus) String() string   { return s.Interpret().String() }

// HeightReference tells what the Height field is measured from.
type HeightReference uint8

const (
	HeightAboveTakeOff HeightReference = iota
	HeightAboveGround
)

var heightReferenceLabels = labels{"Take off", "Ground"}

func (r HeightReference) Interpret() Value { return heightReferenceLabels.interpret(uint8(r)) }
func (r HeightReference) String() string   { return r.Interpret().String() }

// HorizontalAccuracy is the horizontal position accuracy class.
type HorizontalAccuracy uint8

var horizontalAccuracyLabels = labels{
	"Unknown",
	"10 miles",
	"4 miles",
	"2 miles",
	"1 mile",
	"0.5 mile",
	"0.3 mile",
	"0.1 mile",
	"0.05 mile",
	"30 meters",
	"10 meters",
	"3 meters",
	"1 meter",
}

func (a HorizontalAccuracy) Interpret() Value { return horizontalAccuracyLabels.interpret(uint8(a)) }
func (a HorizontalAccuracy) String() string   { return a.Interpret().String() }

// VerticalAccuracy is used for both geodetic and barometric altitude.
type VerticalAccuracy uint8

var verticalAccuracyLabels = labels{"Unknown", "150 m", "45 m", "25 m", "10 m", "3 m", "1 m"}

func (a VerticalAccuracy) Interpret() Value { return verticalAccuracyLabels.interpret(uint8(a)) }
func (a VerticalAccuracy) String() string   { return a.Interpret().String() }

// SpeedAccuracy is the horizontal and vertical speed accuracy class.
type SpeedAccuracy uint8

var speedAccuracyLabels = labels{"Unknown", "10 m/s", "3 m/s", "1 m/s", "0.3 m/s"}

func (a SpeedAccuracy) Interpret() Value { return speedAccuracyLabels.interpret(uint8(a)) }
func (a SpeedAccuracy) String() string   { return a.Interpret().String() }

// TimestampAccuracy is the timestamp accuracy in tenths of a second, 1..15.
type TimestampAccuracy uint8

var timestampAccuracyLabels = labels{
	"Unknown",
	"0.1 second",
	"0.2 second",
	"0.3 second",
	"0.4 second",
	"0.5 second",
	"0.6 second",
	"0.7 second",
	"0.8 second",
	"0.9 second",
	"1 second",
	"1.1 second",
	"1.2 second",
	"1.3 second",
	"1.4 second",
	"1.5 second",
}

func (a TimestampAccuracy) Interpret() Value { return timestampAccuracyLabels.interpret(uint8(a)) }
func (a TimestampAccuracy) String() string   { return a.Interpret().String() }

// DescriptionType qualifies the Self ID text.
type DescriptionType uint8

const (
	DescriptionText DescriptionType = iota
	DescriptionEmergency
	DescriptionExtended
)

var descriptionTypeLabels = labels{"Text", "Emergency", "Extended"}

func (t DescriptionType) Interpret() Value { return descriptionTypeLabels.interpret(uint8(t)) }
func (t DescriptionType) String() string   { return t.Interpret().String() }

// OperatorClassification is the regulatory classification of the operation.
type OperatorClassification uint8

const (
	ClassificationUndeclared OperatorClassification = iota
	ClassificationEU
)

var operatorClassificationLabels = labels{"Undeclared", "EU"}

func (c OperatorClassification) Interpret() Value {
	return operatorClassificationLabels.interpret(uint8(c))
}
func (c OperatorClassification) String() string { return c.Interpret().String() }

// OperatorLocationType tells where the operator position comes from.
type OperatorLocationType uint8

const (
	OperatorLocationTakeOff OperatorLocationType = iota
	OperatorLocationLiveGNSS
	OperatorLocationFixed
)

var operatorLocationTypeLabels = labels{"Take off", "Live GNSS", "Fixed"}

func (t OperatorLocationType) Interpret() Value { return operatorLocationTypeLabels.interpret(uint8(t)) }
func (t OperatorLocationType) String() string   { return t.Interpret().String() }

// UavEuCategory is the EU operation category.
type UavEuCategory uint8

var uavEuCategoryLabels = labels{"Undeclared", "Open", "Specific", "Certified"}

func (c UavEuCategory) Interpret() Value { return uavEuCategoryLabels.interpret(uint8(c)) }
func (c UavEuCategory) String() string   { return c.Interpret().String() }

// UavEuClass is the EU aircraft class; code 1 is Class 0.
type UavEuClass uint8

var uavEuClassLabels = labels{
	"Unspecified",
	"Class 0",
	"Class 1",
	"Class 2",
	"Class 3",
	"Class 4",
	"Class 5",
	"Class 6",
}

func (c UavEuClass) Interpret() Value { return uavEuClassLabels.interpret(uint8(c)) }
func (c UavEuClass) String() string   { return c.Interpret().String() }

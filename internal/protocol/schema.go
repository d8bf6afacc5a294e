package protocol

// LTE RRC message types (log code 0xB0C0)
const (
	LTERRCSystemInformation = 0x01 // SIB1: serving cell identity
	LTERRCNeighborInfo      = 0x02 // SIB4/SIB5 neighbor lists
	LTERRCConnectionRelease = 0x03
	LTERRCSecurityModeCmd   = 0x04
	LTERRCSecurityModeDone  = 0x05
	LTERRCReconfiguration   = 0x06 // with mobility control info
	LTERRCReconfigComplete  = 0x07
	LTERRCMobilityFromEUTRA = 0x08 // inter-RAT handover
	LTERRCMeasurementReport = 0x09
	LTERRCReselection       = 0x0A
)

// LTE NAS EMM message types, TS 24.301 table 9.8.1
const (
	LTENASAttachReject         = 0x44
	LTENASDetachRequest        = 0x45
	LTENASTrackingAreaReject   = 0x4B
	LTENASIdentityRequest      = 0x55
	LTENASSecurityModeCommand  = 0x5D
	LTENASSecurityModeComplete = 0x5E
)

// UMTS RRC message types (log code 0x412F)
const (
	UMTSRRCSystemInformation   = 0x01
	UMTSRRCNeighborInfo        = 0x02 // SIB11
	UMTSRRCConnectionRelease   = 0x03
	UMTSRRCSecurityModeCmd     = 0x04
	UMTSRRCSecurityModeDone    = 0x05
	UMTSRRCPhysChannelReconfig = 0x06
	UMTSRRCPhysReconfigDone    = 0x07
	UMTSRRCHandoverFromUTRAN   = 0x08
	UMTSRRCMeasurementReport   = 0x09
	UMTSRRCCellUpdate          = 0x0A
)

// UMTS/GSM NAS MM and GMM message types, TS 24.008 tables 10.2 and 10.4
const (
	UMTSNASLocationUpdateReject = 0x04
	UMTSNASGMMIdentityRequest   = 0x15
	UMTSNASIdentityRequest      = 0x18
)

// GSM RR message types, TS 44.018 table 10.4.1
const (
	GSMRRChannelRelease     = 0x0D
	GSMRRMeasurementReport  = 0x15
	GSMRRSystemInfoType2    = 0x1A
	GSMRRSystemInfoType3    = 0x1B
	GSMRRHandoverCommand    = 0x2B
	GSMRRHandoverComplete   = 0x2C
	GSMRRCipheringModeDone  = 0x32
	GSMRRCipheringModeCmd   = 0x35
	GSMRRCellReselectionInd = 0x3C
)

type messageSpec struct {
	name string
	kind Kind
}

// schema describes the TLV messages carried under one log code.
type schema struct {
	rat      RAT
	layer    Layer
	domain   Domain // domain used for cell info on this layer
	messages map[byte]messageSpec
}

// schemas is read-only after init.
var schemas = map[LogCode]*schema{
	LogLTERRC: {
		rat: RATLTE, layer: LayerRRC, domain: DomainPS,
		messages: map[byte]messageSpec{
			LTERRCSystemInformation: {"SystemInformationBlockType1", KindCellInfo},
			LTERRCNeighborInfo:      {"SystemInformationBlockType5", KindNeighborList},
			LTERRCConnectionRelease: {"RRCConnectionRelease", KindConnectionRelease},
			LTERRCSecurityModeCmd:   {"SecurityModeCommand", KindSecurityModeCommand},
			LTERRCSecurityModeDone:  {"SecurityModeComplete", KindSecurityModeComplete},
			LTERRCReconfiguration:   {"RRCConnectionReconfiguration", KindHandoverCommand},
			LTERRCReconfigComplete:  {"RRCConnectionReconfigurationComplete", KindHandoverComplete},
			LTERRCMobilityFromEUTRA: {"MobilityFromEUTRACommand", KindHandoverCommand},
			LTERRCMeasurementReport: {"MeasurementReport", KindMeasurementReport},
			LTERRCReselection:       {"CellReselectionIndication", KindReselection},
		},
	},
	LogLTENASIncoming: lteNAS,
	LogLTENASOutgoing: lteNAS,
	LogUMTSRRC: {
		rat: RATUMTS, layer: LayerRRC, domain: DomainPS,
		messages: map[byte]messageSpec{
			UMTSRRCSystemInformation:   {"SystemInformationBlockType3", KindCellInfo},
			UMTSRRCNeighborInfo:        {"SystemInformationBlockType11", KindNeighborList},
			UMTSRRCConnectionRelease:   {"RRCConnectionRelease", KindConnectionRelease},
			UMTSRRCSecurityModeCmd:     {"SecurityModeCommand", KindSecurityModeCommand},
			UMTSRRCSecurityModeDone:    {"SecurityModeComplete", KindSecurityModeComplete},
			UMTSRRCPhysChannelReconfig: {"PhysicalChannelReconfiguration", KindHandoverCommand},
			UMTSRRCPhysReconfigDone:    {"PhysicalChannelReconfigurationComplete", KindHandoverComplete},
			UMTSRRCHandoverFromUTRAN:   {"HandoverFromUTRANCommand", KindHandoverCommand},
			UMTSRRCMeasurementReport:   {"MeasurementReport", KindMeasurementReport},
			UMTSRRCCellUpdate:          {"CellUpdate", KindReselection},
		},
	},
	LogUMTSNAS: {
		rat: RATUMTS, layer: LayerNAS, domain: DomainCS,
		messages: map[byte]messageSpec{
			UMTSNASLocationUpdateReject: {"LocationUpdatingReject", KindConnectionRelease},
			UMTSNASGMMIdentityRequest:   {"GMMIdentityRequest", KindIdentityRequest},
			UMTSNASIdentityRequest:      {"IdentityRequest", KindIdentityRequest},
		},
	},
	LogGSMRR: {
		rat: RATGSM, layer: LayerRRC, domain: DomainCS,
		messages: map[byte]messageSpec{
			GSMRRChannelRelease:     {"ChannelRelease", KindConnectionRelease},
			GSMRRMeasurementReport:  {"MeasurementReport", KindMeasurementReport},
			GSMRRSystemInfoType2:    {"SystemInformationType2", KindNeighborList},
			GSMRRSystemInfoType3:    {"SystemInformationType3", KindCellInfo},
			GSMRRHandoverCommand:    {"HandoverCommand", KindHandoverCommand},
			GSMRRHandoverComplete:   {"HandoverComplete", KindHandoverComplete},
			GSMRRCipheringModeDone:  {"CipheringModeComplete", KindSecurityModeComplete},
			GSMRRCipheringModeCmd:   {"CipheringModeCommand", KindSecurityModeCommand},
			GSMRRCellReselectionInd: {"CellReselectionIndication", KindReselection},
		},
	},
}

var lteNAS = &schema{
	rat: RATLTE, layer: LayerNAS, domain: DomainPS,
	messages: map[byte]messageSpec{
		LTENASAttachReject:         {"AttachReject", KindConnectionRelease},
		LTENASDetachRequest:        {"DetachRequest", KindConnectionRelease},
		LTENASTrackingAreaReject:   {"TrackingAreaUpdateReject", KindConnectionRelease},
		LTENASIdentityRequest:      {"IdentityRequest", KindIdentityRequest},
		LTENASSecurityModeCommand:  {"SecurityModeCommand", KindSecurityModeCommand},
		LTENASSecurityModeComplete: {"SecurityModeComplete", KindSecurityModeComplete},
	},
}

// CellInfoDomain returns the domain that cell info decoded for rat is filed
// under: the domain of that RAT's RRC schema.
func CellInfoDomain(rat RAT) Domain {
	for _, s := range schemas {
		if s.rat == rat && s.layer == LayerRRC {
			return s.domain
		}
	}
	return DomainPS
}

// HasSchema reports whether records under code are decoded.
func HasSchema(code LogCode) bool {
	if code == LogLTEServingCell {
		return true
	}
	_, ok := schemas[code]
	return ok
}

// SchemaRAT returns the RAT of records under code.
func SchemaRAT(code LogCode) RAT {
	if code == LogLTEServingCell {
		return RATLTE
	}
	if s, ok := schemas[code]; ok {
		return s.rat
	}
	return RATUnknown
}

package port

import (
	"github.com/newtron-network/portmgr/pkg/field"
)

// Port configuration fields.
const (
	FieldSpeed field.ID = iota + 1
	FieldFEC
	FieldLanes
	FieldPortEnable
	FieldAutoneg
	FieldLoopback
	FieldTxMTU
	FieldRxMTU
	FieldTxPFCMap
	FieldRxPFCMap
	FieldTxPauseEnable
	FieldRxPauseEnable
	FieldCutThrough
	FieldDirection
	FieldMediaType
	FieldSerdesTxAttn
	FieldSerdesTxPre
	FieldSerdesTxPost
	FieldSerdesTxPre2
	FieldSerdesTxPost2
	FieldParserPriorityThresh
	FieldPTPTxDelta
	FieldPTPRxDelta
	FieldPTPTimestampValue
	FieldPTPTimestampID
	FieldPTPTimestampValid
	FieldRecircEnable
	FieldIsInternal
	FieldPortUp
	FieldPortValid
	FieldPortName
	FieldConnID
	FieldChnlID
)

// Schema is the field list of the $PORT table.
var Schema = field.MustSchema("$PORT",
	field.Descriptor{ID: FieldSpeed, Name: "$SPEED", Type: field.TypeString},
	field.Descriptor{ID: FieldFEC, Name: "$FEC", Type: field.TypeString},
	field.Descriptor{ID: FieldLanes, Name: "$N_LANES", Type: field.TypeU32, Width: 8},
	field.Descriptor{ID: FieldPortEnable, Name: "$PORT_ENABLE", Type: field.TypeBool},
	field.Descriptor{ID: FieldAutoneg, Name: "$AUTO_NEGOTIATION", Type: field.TypeString},
	field.Descriptor{ID: FieldLoopback, Name: "$LOOPBACK_MODE", Type: field.TypeString},
	field.Descriptor{ID: FieldTxMTU, Name: "$TX_MTU", Type: field.TypeU32, Width: 16},
	field.Descriptor{ID: FieldRxMTU, Name: "$RX_MTU", Type: field.TypeU32, Width: 16},
	field.Descriptor{ID: FieldTxPFCMap, Name: "$TX_PFC_MAP", Type: field.TypeU32, Width: 8},
	field.Descriptor{ID: FieldRxPFCMap, Name: "$RX_PFC_MAP", Type: field.TypeU32, Width: 8},
	field.Descriptor{ID: FieldTxPauseEnable, Name: "$TX_PAUSE_FRAME_EN", Type: field.TypeBool},
	field.Descriptor{ID: FieldRxPauseEnable, Name: "$RX_PAUSE_FRAME_EN", Type: field.TypeBool},
	field.Descriptor{ID: FieldCutThrough, Name: "$CUT_THROUGH_EN", Type: field.TypeBool},
	field.Descriptor{ID: FieldDirection, Name: "$PORT_DIR", Type: field.TypeString},
	field.Descriptor{ID: FieldMediaType, Name: "$MEDIA_TYPE", Type: field.TypeString},
	field.Descriptor{ID: FieldSerdesTxAttn, Name: "$SDS_TX_ATTN", Type: field.TypeI64, Width: 32},
	field.Descriptor{ID: FieldSerdesTxPre, Name: "$SDS_TX_PRE", Type: field.TypeI64, Width: 32},
	field.Descriptor{ID: FieldSerdesTxPost, Name: "$SDS_TX_POST", Type: field.TypeI64, Width: 32},
	field.Descriptor{ID: FieldSerdesTxPre2, Name: "$SDS_TX_PRE2", Type: field.TypeI64, Width: 32, ReadOnly: true},
	field.Descriptor{ID: FieldSerdesTxPost2, Name: "$SDS_TX_POST2", Type: field.TypeI64, Width: 32, ReadOnly: true},
	field.Descriptor{ID: FieldParserPriorityThresh, Name: "$RX_PRSR_PRI_THRESH", Type: field.TypeU32, Width: 3},
	field.Descriptor{ID: FieldPTPTxDelta, Name: "$TIMESTAMP_1588_DELTA_TX", Type: field.TypeU32, Width: 16},
	field.Descriptor{ID: FieldPTPRxDelta, Name: "$TIMESTAMP_1588_DELTA_RX", Type: field.TypeU32, Width: 16},
	field.Descriptor{ID: FieldPTPTimestampValue, Name: "$TIMESTAMP_1588_VALUE", Type: field.TypeU64, ReadOnly: true},
	field.Descriptor{ID: FieldPTPTimestampID, Name: "$TIMESTAMP_1588_ID", Type: field.TypeU32, ReadOnly: true},
	field.Descriptor{ID: FieldPTPTimestampValid, Name: "$TIMESTAMP_1588_VALID", Type: field.TypeBool, ReadOnly: true},
	field.Descriptor{ID: FieldRecircEnable, Name: "$RECIRC_ENABLE", Type: field.TypeBool},
	field.Descriptor{ID: FieldIsInternal, Name: "$IS_INTERNAL", Type: field.TypeBool, ReadOnly: true},
	field.Descriptor{ID: FieldPortUp, Name: "$PORT_UP", Type: field.TypeBool, ReadOnly: true},
	field.Descriptor{ID: FieldPortValid, Name: "$PORT_VALID", Type: field.TypeBool, ReadOnly: true},
	field.Descriptor{ID: FieldPortName, Name: "$PORT_NAME", Type: field.TypeString, ReadOnly: true},
	field.Descriptor{ID: FieldConnID, Name: "$CONN_ID", Type: field.TypeU32, ReadOnly: true},
	field.Descriptor{ID: FieldChnlID, Name: "$CHNL_ID", Type: field.TypeU32, ReadOnly: true},
)

// KeyDevPort is the single key field of the port and statistics tables.
const KeyDevPort field.ID = 1

// KeySchema is the key of the $PORT and $PORT_STAT tables.
var KeySchema = field.MustSchema("$PORT.key",
	field.Descriptor{ID: KeyDevPort, Name: "$DEV_PORT", Type: field.TypeU32},
)

// Field groups applied as one driver call. A write must carry every member
// of a group or none of them.
var (
	groupMTU    = []field.ID{FieldTxMTU, FieldRxMTU}
	groupPFC    = []field.ID{FieldTxPFCMap, FieldRxPFCMap}
	groupPause  = []field.ID{FieldTxPauseEnable, FieldRxPauseEnable}
	groupSerdes = []field.ID{FieldSerdesTxAttn, FieldSerdesTxPre, FieldSerdesTxPost}
)

// Group returns the paired group id belongs to, or nil when id is written
// on its own.
func Group(id field.ID) []field.ID {
	for _, g := range [][]field.ID{groupMTU, groupPFC, groupPause, groupSerdes} {
		for _, m := range g {
			if m == id {
				return g
			}
		}
	}
	return nil
}

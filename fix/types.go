package fix

// MsgType tag-35 values for the subset of FIX this harness drives
// plus generic passthrough of anything else received.
const (
	MsgTypeHeartbeat       = "0"
	MsgTypeTestRequest     = "1"
	MsgTypeResendRequest   = "2"
	MsgTypeReject          = "3"
	MsgTypeSequenceReset   = "4"
	MsgTypeLogout          = "5"
	MsgTypeExecutionReport = "8"
	MsgTypeLogon           = "A"
	MsgTypeNewOrderSingle  = "D"
)

// msgTypeNames maps MsgType codes to human-readable names, for
// logging only; it does not affect session semantics. A full FIX 5.0
// SP2 message-type table.
var msgTypeNames = map[string]string{
	"0":  "Heartbeat",
	"1":  "TestRequest",
	"2":  "ResendRequest",
	"3":  "Reject",
	"4":  "SequenceReset",
	"5":  "Logout",
	"6":  "IOI",
	"7":  "Advertisement",
	"8":  "ExecutionReport",
	"9":  "OrderCancelReject",
	"A":  "Logon",
	"B":  "News",
	"C":  "Email",
	"D":  "NewOrderSingle",
	"E":  "NewOrderList",
	"F":  "OrderCancelRequest",
	"G":  "OrderCancelReplaceRequest",
	"H":  "OrderStatusRequest",
	"J":  "AllocationInstruction",
	"K":  "ListCancelRequest",
	"L":  "ListExecute",
	"M":  "ListStatusRequest",
	"N":  "ListStatus",
	"P":  "AllocationInstructionAck",
	"Q":  "DontKnowTrade",
	"R":  "QuoteRequest",
	"S":  "Quote",
	"T":  "SettlementInstructions",
	"V":  "MarketDataRequest",
	"W":  "MarketDataSnapshotFullRefresh",
	"X":  "MarketDataIncrementalRefresh",
	"Y":  "MarketDataRequestReject",
	"Z":  "QuoteCancel",
	"a":  "QuoteStatusRequest",
	"b":  "MassQuoteAcknowledgement",
	"c":  "SecurityDefinitionRequest",
	"d":  "SecurityDefinition",
	"e":  "SecurityStatusRequest",
	"f":  "SecurityStatus",
	"g":  "TradingSessionStatusRequest",
	"h":  "TradingSessionStatus",
	"i":  "MassQuote",
	"j":  "BusinessMessageReject",
	"k":  "BidRequest",
	"l":  "BidResponse",
	"m":  "ListStrikePrice",
	"n":  "XMLnonFIX",
	"o":  "RegistrationInstructions",
	"p":  "RegistrationInstructionsResponse",
	"q":  "OrderMassCancelRequest",
	"r":  "OrderMassCancelReport",
	"s":  "NewOrderCross",
	"t":  "CrossOrderCancelReplaceRequest",
	"u":  "CrossOrderCancelRequest",
	"v":  "SecurityTypeRequest",
	"w":  "SecurityTypes",
	"x":  "SecurityListRequest",
	"y":  "SecurityList",
	"z":  "DerivativeSecurityListRequest",
	"AA": "DerivativeSecurityList",
	"AB": "NewOrderMultileg",
	"AC": "MultilegOrderCancelReplace",
	"AD": "TradeCaptureReportRequest",
	"AE": "TradeCaptureReport",
	"AF": "OrderMassStatusRequest",
	"AG": "QuoteRequestReject",
	"AH": "RFQRequest",
	"AI": "QuoteStatusReport",
	"AJ": "QuoteResponse",
	"AK": "Confirmation",
	"AL": "PositionMaintenanceRequest",
	"AM": "PositionMaintenanceReport",
	"AN": "RequestForPositions",
	"AO": "RequestForPositionsAck",
	"AP": "PositionReport",
	"AQ": "TradeCaptureReportAck",
	"AR": "OrderMassCancelReportAck",
	"AS": "NewOrderMultilegCancelReplace",
	"AT": "TradeCaptureReportRequestAck",
	"AU": "AllocationReport",
	"AV": "AllocationReportAck",
	"AW": "ConfirmationAck",
	"AX": "SettlementInstructionRequest",
	"AY": "AssignmentReport",
	"AZ": "CollateralRequest",
	"BA": "CollateralAssignment",
	"BB": "CollateralResponse",
	"BC": "CollateralReport",
	"BD": "CollateralInquiry",
	"BE": "NetworkCounterpartySystemStatusRequest",
	"BF": "NetworkCounterpartySystemStatusResponse",
	"BG": "UserRequest",
	"BH": "UserResponse",
	"BI": "CollateralInquiryAck",
	"BJ": "ConfirmationRequest",
	"BK": "TradingSessionListRequest",
	"BL": "TradingSessionList",
	"BM": "SecurityListUpdateReport",
	"BN": "AdjustedPositionReport",
	"BO": "AllocationInstructionAlert",
	"BP": "ExecutionAcknowledgement",
	"BQ": "ContraryIntentionReport",
	"BR": "SecurityDefinitionUpdateReport",
	"BS": "SettlementObligationReport",
	"BT": "DerivativeSecurityListUpdateReport",
	"BU": "TradingSessionListUpdateReport",
	"BV": "MarketDefinitionRequest",
	"BW": "MarketDefinition",
	"BX": "MarketDefinitionUpdateReport",
	"BY": "ApplicationMessageRequest",
	"BZ": "ApplicationMessageRequestAck",
	"CA": "ApplicationMessageReport",
	"CB": "OrderMassActionReport",
	"CC": "OrderMassActionRequest",
	"CD": "UserNotification",
	"CE": "StreamAssignmentRequest",
	"CF": "StreamAssignmentReport",
	"CG": "StreamAssignmentReportACK",
	"CH": "PartyDetailsListRequest",
	"CI": "PartyDetailsListReport",
	"CJ": "MarketDataRequestAck",
	"CK": "SecurityMassStatusRequest",
	"CL": "SecurityMassStatus",
}

// ExecType tag-150 values, for logging only.
var execTypeNames = map[string]string{
	"0": "New",
	"1": "PartialFill",
	"2": "Fill",
	"3": "DoneForDay",
	"4": "Canceled",
	"5": "Replaced",
	"6": "PendingCancel",
	"7": "Stopped",
	"8": "Rejected",
	"9": "Suspended",
	"A": "PendingNew",
	"B": "Calculated",
	"C": "Expired",
	"D": "Restated",
	"E": "PendingReplace",
	"F": "Trade",
	"G": "TradeCorrect",
	"H": "TradeCancel",
	"I": "OrderStatus",
}

// MsgTypeName returns a human-readable name for a MsgType code.
// Unknown codes render as "???".
func MsgTypeName(code string) string {
	if name, ok := msgTypeNames[code]; ok {
		return name
	}
	return "???"
}

// ExecTypeName returns a human-readable name for an ExecType code.
// Unknown codes render as "???".
func ExecTypeName(code string) string {
	if name, ok := execTypeNames[code]; ok {
		return name
	}
	return "???"
}

package tx

import "fmt"

// Result represents a transaction result code
type Result int

// Transaction result codes organized by category: tes, tec, tef, tem, ter.
// tes means applied, tec means applied with the effects discarded, the
// negative ranges mean the transaction was not applied at all.
const (
	// tesSUCCESS (0)
	TesSUCCESS Result = 0

	// tec codes (100-199): claimed, sequence consumed, effects discarded
	TecUNAUTHORIZED       Result = 100
	TecALREADY_LOCKED     Result = 101
	TecNOT_LOCKED         Result = 102
	TecSWAP_NOT_OPEN      Result = 103
	TecBALANCE_MISMATCH   Result = 104
	TecASSET_MISMATCH     Result = 105
	TecINSUFFICIENT_FUNDS Result = 106
	TecOVERFLOW           Result = 107
	TecNO_DST             Result = 108
	TecNO_ENTRY           Result = 109
	TecDUPLICATE          Result = 110
	TecUNFUNDED           Result = 111
	TecINTERNAL           Result = 144

	// tef codes (-199 to -100): hard failure, not applied
	TefFAILURE       Result = -199
	TefALREADY       Result = -198
	TefBAD_AUTH      Result = -196
	TefBAD_RECORD    Result = -195
	TefINTERNAL      Result = -192
	TefPAST_SEQ      Result = -190
	TefMAX_LEDGER    Result = -187
	TefBAD_SIGNATURE Result = -186

	// tem codes (-299 to -200): malformed, never valid
	TemMALFORMED       Result = -299
	TemBAD_AMOUNT      Result = -298
	TemBAD_PRICE       Result = -297
	TemBAD_EXPIRATION  Result = -296
	TemBAD_ISSUER      Result = -294
	TemBAD_SEQUENCE    Result = -283
	TemBAD_SIGNATURE   Result = -282
	TemBAD_SRC_ACCOUNT Result = -281
	TemDST_IS_SRC      Result = -279
	TemDST_NEEDED      Result = -278
	TemINVALID         Result = -277
	TemINVALID_FLAG    Result = -276
	TemREDUNDANT       Result = -275

	// ter codes (-99 to -1): retry later
	TerRETRY      Result = -99
	TerNO_ACCOUNT Result = -96
	TerPRE_SEQ    Result = -92
	TerQUEUED     Result = -89
)

// String returns the string representation of the result code
func (r Result) String() string {
	switch r {
	case TesSUCCESS:
		return "tesSUCCESS"
	case TecUNAUTHORIZED:
		return "tecUNAUTHORIZED"
	case TecALREADY_LOCKED:
		return "tecALREADY_LOCKED"
	case TecNOT_LOCKED:
		return "tecNOT_LOCKED"
	case TecSWAP_NOT_OPEN:
		return "tecSWAP_NOT_OPEN"
	case TecBALANCE_MISMATCH:
		return "tecBALANCE_MISMATCH"
	case TecASSET_MISMATCH:
		return "tecASSET_MISMATCH"
	case TecINSUFFICIENT_FUNDS:
		return "tecINSUFFICIENT_FUNDS"
	case TecOVERFLOW:
		return "tecOVERFLOW"
	case TecNO_DST:
		return "tecNO_DST"
	case TecNO_ENTRY:
		return "tecNO_ENTRY"
	case TecDUPLICATE:
		return "tecDUPLICATE"
	case TecUNFUNDED:
		return "tecUNFUNDED"
	case TecINTERNAL:
		return "tecINTERNAL"
	case TefFAILURE:
		return "tefFAILURE"
	case TefALREADY:
		return "tefALREADY"
	case TefBAD_AUTH:
		return "tefBAD_AUTH"
	case TefBAD_RECORD:
		return "tefBAD_RECORD"
	case TefINTERNAL:
		return "tefINTERNAL"
	case TefPAST_SEQ:
		return "tefPAST_SEQ"
	case TefMAX_LEDGER:
		return "tefMAX_LEDGER"
	case TefBAD_SIGNATURE:
		return "tefBAD_SIGNATURE"
	case TemMALFORMED:
		return "temMALFORMED"
	case TemBAD_AMOUNT:
		return "temBAD_AMOUNT"
	case TemBAD_PRICE:
		return "temBAD_PRICE"
	case TemBAD_EXPIRATION:
		return "temBAD_EXPIRATION"
	case TemBAD_ISSUER:
		return "temBAD_ISSUER"
	case TemBAD_SEQUENCE:
		return "temBAD_SEQUENCE"
	case TemBAD_SIGNATURE:
		return "temBAD_SIGNATURE"
	case TemBAD_SRC_ACCOUNT:
		return "temBAD_SRC_ACCOUNT"
	case TemDST_IS_SRC:
		return "temDST_IS_SRC"
	case TemDST_NEEDED:
		return "temDST_NEEDED"
	case TemINVALID:
		return "temINVALID"
	case TemINVALID_FLAG:
		return "temINVALID_FLAG"
	case TemREDUNDANT:
		return "temREDUNDANT"
	case TerRETRY:
		return "terRETRY"
	case TerNO_ACCOUNT:
		return "terNO_ACCOUNT"
	case TerPRE_SEQ:
		return "terPRE_SEQ"
	case TerQUEUED:
		return "terQUEUED"
	default:
		return fmt.Sprintf("Unknown(%d)", r)
	}
}

// IsSuccess returns true if the result indicates success
func (r Result) IsSuccess() bool {
	return r == TesSUCCESS
}

// IsTec returns true if this is a tec (effects discarded) code
func (r Result) IsTec() bool {
	return r >= 100 && r < 200
}

// IsTef returns true if this is a tef (failure) code
func (r Result) IsTef() bool {
	return r >= -199 && r <= -100
}

// IsTem returns true if this is a tem (malformed) code
func (r Result) IsTem() bool {
	return r >= -299 && r <= -200
}

// IsTer returns true if this is a ter (retry) code
func (r Result) IsTer() bool {
	return r >= -99 && r <= -1
}

// ShouldRetry returns true if the transaction should be retried later
func (r Result) ShouldRetry() bool {
	return r.IsTer()
}

// IsApplied returns true if the transaction was applied to the ledger.
// This is true for tesSUCCESS and all tec codes.
func (r Result) IsApplied() bool {
	return r.IsSuccess() || r.IsTec()
}

// Message returns a human-readable message for the result
func (r Result) Message() string {
	switch r {
	case TesSUCCESS:
		return "The transaction was applied."
	case TecUNAUTHORIZED:
		return "The signer is not authorized to perform this operation."
	case TecALREADY_LOCKED:
		return "The vault is already locked."
	case TecNOT_LOCKED:
		return "The vault is not locked."
	case TecSWAP_NOT_OPEN:
		return "The swap is not open."
	case TecBALANCE_MISMATCH:
		return "A holding balance does not match the expected amount."
	case TecASSET_MISMATCH:
		return "The referenced records do not agree on the asset."
	case TecINSUFFICIENT_FUNDS:
		return "Insufficient balance to complete the operation."
	case TecOVERFLOW:
		return "A balance arithmetic operation overflowed."
	case TecNO_DST:
		return "Destination account does not exist."
	case TecNO_ENTRY:
		return "A referenced ledger record does not exist."
	case TecDUPLICATE:
		return "The record to be created already exists."
	case TecUNFUNDED:
		return "Insufficient balance to send."
	case TemBAD_AMOUNT:
		return "Can only send positive amounts."
	case TemBAD_PRICE:
		return "Swap price must be positive."
	case TemBAD_SEQUENCE:
		return "Sequence number must be non-zero."
	case TemDST_IS_SRC:
		return "Destination may not be source."
	case TemDST_NEEDED:
		return "Destination is required."
	case TemINVALID:
		return "The transaction is ill-formed."
	case TerNO_ACCOUNT:
		return "The source account does not exist."
	case TerPRE_SEQ:
		return "Missing/inapplicable prior transaction."
	case TefBAD_SIGNATURE:
		return "Invalid signature."
	case TefBAD_RECORD:
		return "A ledger record failed to deserialize."
	case TefPAST_SEQ:
		return "Sequence number has already passed."
	default:
		return r.String()
	}
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Solana signatures are base58, around 88 characters. The alphabet excludes
// 0, O, I and l.
var base58SignaturePattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// VerificationResult reports the outcome of an on-chain payment check.
type VerificationResult struct {
	Valid     bool
	Signature string
	AmountSOL decimal.Decimal
	Status    string
	BlockTime *int64
	Error     string
	Code      string
}

// Verification failure codes.
const (
	VerifyCodeBadFormat     = "BAD_FORMAT"
	VerifyCodeNotFound      = "NOT_FOUND"
	VerifyCodeTxFailed      = "TX_FAILED"
	VerifyCodeStatusUnknown = "STATUS_UNKNOWN"
	VerifyCodePending       = "PENDING"
	VerifyCodeRPCError      = "RPC_ERROR"
)

// PaymentVerifier checks that a transaction signature corresponds to a
// successful, confirmed payment on chain.
type PaymentVerifier interface {
	VerifyTransaction(ctx context.Context, txSignature string, expectedAmountSOL decimal.Decimal, recipientWallet string) VerificationResult
}

// SolanaService verifies payments against a Solana JSON-RPC endpoint.
type SolanaService struct {
	endpoint string
	client   *http.Client
}

func NewSolanaService(endpoint string) *SolanaService {
	return &SolanaService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// ValidateSignatureFormat reports whether txSignature looks like a Solana
// transaction signature. It is a local check and touches no network.
func ValidateSignatureFormat(txSignature string) bool {
	if len(txSignature) < 80 || len(txSignature) > 100 {
		return false
	}
	return base58SignaturePattern.MatchString(txSignature)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type getTransactionResponse struct {
	Result *struct {
		BlockTime *int64 `json:"blockTime"`
		Meta      *struct {
			Err interface{} `json:"err"`
		} `json:"meta"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type getSignatureStatusesResponse struct {
	Result *struct {
		Value []*struct {
			ConfirmationStatus string      `json:"confirmationStatus"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// VerifyTransaction runs the full check: signature format, on-chain lookup,
// execution success, then confirmation status. Only "confirmed" and
// "finalized" are accepted.
func (s *SolanaService) VerifyTransaction(ctx context.Context, txSignature string, expectedAmountSOL decimal.Decimal, recipientWallet string) VerificationResult {
	if !ValidateSignatureFormat(txSignature) {
		return VerificationResult{Valid: false, Error: "Invalid signature format", Code: VerifyCodeBadFormat}
	}

	var txResp getTransactionResponse
	err := s.call(ctx, "getTransaction", []interface{}{
		txSignature,
		map[string]interface{}{"maxSupportedTransactionVersion": 0},
	}, &txResp)
	if err != nil {
		log.Error().Err(err).Str("signature", txSignature).Msg("Solana getTransaction failed")
		return VerificationResult{Valid: false, Error: err.Error(), Code: VerifyCodeRPCError}
	}
	if txResp.Error != nil {
		return VerificationResult{Valid: false, Error: txResp.Error.Message, Code: VerifyCodeRPCError}
	}
	if txResp.Result == nil {
		return VerificationResult{Valid: false, Error: "Transaction not found on blockchain", Code: VerifyCodeNotFound}
	}
	if txResp.Result.Meta != nil && txResp.Result.Meta.Err != nil {
		return VerificationResult{
			Valid: false,
			Error: fmt.Sprintf("Transaction failed on chain: %v", txResp.Result.Meta.Err),
			Code:  VerifyCodeTxFailed,
		}
	}

	var statusResp getSignatureStatusesResponse
	err = s.call(ctx, "getSignatureStatuses", []interface{}{
		[]string{txSignature},
		map[string]interface{}{"searchTransactionHistory": true},
	}, &statusResp)
	if err != nil {
		log.Error().Err(err).Str("signature", txSignature).Msg("Solana getSignatureStatuses failed")
		return VerificationResult{Valid: false, Error: err.Error(), Code: VerifyCodeRPCError}
	}
	if statusResp.Error != nil {
		return VerificationResult{Valid: false, Error: statusResp.Error.Message, Code: VerifyCodeRPCError}
	}
	if statusResp.Result == nil || len(statusResp.Result.Value) == 0 || statusResp.Result.Value[0] == nil {
		return VerificationResult{Valid: false, Error: "Could not verify transaction status", Code: VerifyCodeStatusUnknown}
	}

	confirmation := statusResp.Result.Value[0].ConfirmationStatus
	if confirmation != "confirmed" && confirmation != "finalized" {
		return VerificationResult{Valid: false, Error: "Transaction not yet confirmed", Code: VerifyCodePending}
	}

	return VerificationResult{
		Valid:     true,
		Signature: txSignature,
		AmountSOL: expectedAmountSOL,
		Status:    confirmation,
		BlockTime: txResp.Result.BlockTime,
	}
}

func (s *SolanaService) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

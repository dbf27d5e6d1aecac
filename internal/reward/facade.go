package reward

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter"
	"github.com/ce20480/reward-orchestrator/internal/chainadapter/storage"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ContractReader is the read-only subset of chain access the façade uses
// for precondition checks (hasRole) and view calls (balanceOf,
// getUserAchievements, getAchievement).
type ContractReader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Result is the outcome of one façade operation, shaped for the HTTP
// surface described in the external-interfaces section: status plus
// whatever fields that operation contributes.
type Result struct {
	Status        string // "success", "pending", or "error"
	TxHash        common.Hash
	ErrorKind     chainadapter.ErrorKind
	TokenID       *big.Int
	BalanceBefore *big.Int
	BalanceAfter  *big.Int
	Retries       int
}

// Facade exposes the reward system's business operations as plain Go
// methods; an outer transport layer (HTTP, gRPC, CLI) is responsible for
// framing these as requests/responses.
type Facade struct {
	pipeline   *chainadapter.SubmissionPipeline
	reader     ContractReader
	signer     *chainadapter.EthereumSigner
	xp         *chainadapter.ContractHandle
	achievement *chainadapter.ContractHandle
	ledger     *storage.TransactionLedger
	log        *zap.SugaredLogger
}

func NewFacade(pipeline *chainadapter.SubmissionPipeline, reader ContractReader, signer *chainadapter.EthereumSigner, xp, achievement *chainadapter.ContractHandle, ledger *storage.TransactionLedger, log *zap.SugaredLogger) *Facade {
	return &Facade{pipeline: pipeline, reader: reader, signer: signer, xp: xp, achievement: achievement, ledger: ledger, log: log}
}

func (f *Facade) hasRole(ctx context.Context, contract *chainadapter.ContractHandle, role [32]byte, account common.Address) (bool, error) {
	data, err := contract.Pack("hasRole", role, account)
	if err != nil {
		return false, err
	}
	out, err := f.reader.CallContract(ctx, ethereum.CallMsg{To: &contract.Address, Data: data}, nil)
	if err != nil {
		return false, chainadapter.ClassifyError(err)
	}
	var hasIt bool
	if err := contract.ABI.UnpackIntoInterface(&hasIt, "hasRole", out); err != nil {
		return false, chainadapter.NewValidationError(fmt.Sprintf("failed to decode hasRole result: %v", err))
	}
	return hasIt, nil
}

func (f *Facade) balanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	data, err := f.xp.Pack("balanceOf", account)
	if err != nil {
		return nil, err
	}
	out, err := f.reader.CallContract(ctx, ethereum.CallMsg{To: &f.xp.Address, Data: data}, nil)
	if err != nil {
		return nil, chainadapter.ClassifyError(err)
	}
	balance := new(big.Int)
	if err := f.xp.ABI.UnpackIntoInterface(&balance, "balanceOf", out); err != nil {
		return nil, chainadapter.NewValidationError(fmt.Sprintf("failed to decode balanceOf result: %v", err))
	}
	return balance, nil
}

// putIfHashed persists record to the ledger only once a hash exists. A
// pipeline failure in Simulate or Sign never reaches Send, so record.Hash is
// still the zero hash; per §7 a submission that never yields a hash is
// reported as an error with no ledger entry, not a Failed record stored
// under the shared zero-hash key (which would collide across subjects in
// the ledger's address index).
func (f *Facade) putIfHashed(record *chainadapter.TxRecord) {
	if record == nil || record.Hash == (common.Hash{}) {
		return
	}
	_ = f.ledger.Put(record)
}

func resultFromRecord(record *chainadapter.TxRecord) Result {
	if record == nil {
		return Result{Status: "error", ErrorKind: chainadapter.ErrUnexpectedError}
	}
	r := Result{TxHash: record.Hash, ErrorKind: record.ErrorKind}
	switch record.State {
	case chainadapter.TxStateConfirmed:
		r.Status = "success"
	case chainadapter.TxStateFailed:
		r.Status = "error"
	default:
		r.Status = "pending"
	}
	return r
}

// AwardXP awards the fixed XP amount the contract assigns to activity,
// requiring the signer to hold MINTER_ROLE.
func (f *Facade) AwardXP(ctx context.Context, addr common.Address, activity Activity) (Result, error) {
	hasMinter, err := f.hasRole(ctx, f.xp, MinterRole, f.signer.Address())
	if err != nil {
		f.log.Warnw("could not check minter role, proceeding; transaction will fail if unauthorized", "error", err)
	} else if !hasMinter {
		return Result{Status: "error", ErrorKind: chainadapter.ErrPermissionError}, chainadapter.NewValidationError("signer does not hold MINTER_ROLE")
	}

	balanceBefore, _ := f.balanceOf(ctx, addr)

	data, err := f.xp.Pack("awardXP", addr, uint8(activity))
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.xp.Address, addr, "awardXP", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}

	result := resultFromRecord(record)
	result.BalanceBefore = balanceBefore
	if result.Status == "success" {
		if after, balErr := f.balanceOf(ctx, addr); balErr == nil {
			result.BalanceAfter = after
		}
	}
	return result, nil
}

// AwardCustomXP awards an explicit amount of XP, requiring MINTER_ROLE and
// amount > 0.
func (f *Facade) AwardCustomXP(ctx context.Context, addr common.Address, amount *big.Int, activity Activity) (Result, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Result{Status: "error", ErrorKind: chainadapter.ErrValidationError}, chainadapter.NewValidationError("amount must be positive")
	}

	hasMinter, err := f.hasRole(ctx, f.xp, MinterRole, f.signer.Address())
	if err != nil {
		f.log.Warnw("could not check minter role, proceeding; transaction will fail if unauthorized", "error", err)
	} else if !hasMinter {
		return Result{Status: "error", ErrorKind: chainadapter.ErrPermissionError}, chainadapter.NewValidationError("signer does not hold MINTER_ROLE")
	}

	balanceBefore, _ := f.balanceOf(ctx, addr)

	data, err := f.xp.Pack("awardCustomXP", addr, amount, uint8(activity))
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.xp.Address, addr, "awardCustomXP", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}

	result := resultFromRecord(record)
	result.BalanceBefore = balanceBefore
	if result.Status == "success" {
		if after, balErr := f.balanceOf(ctx, addr); balErr == nil {
			result.BalanceAfter = after
		}
	}
	return result, nil
}

// UpdateRewardRate changes the XP awarded per activity; requires
// DEFAULT_ADMIN_ROLE and rate > 0.
func (f *Facade) UpdateRewardRate(ctx context.Context, activity Activity, rate *big.Int) (Result, error) {
	if rate == nil || rate.Sign() <= 0 {
		return Result{Status: "error", ErrorKind: chainadapter.ErrValidationError}, chainadapter.NewValidationError("rate must be positive")
	}

	hasAdmin, err := f.hasRole(ctx, f.xp, AdminRole, f.signer.Address())
	if err != nil {
		f.log.Warnw("could not check admin role, proceeding; transaction will fail if unauthorized", "error", err)
	} else if !hasAdmin {
		return Result{Status: "error", ErrorKind: chainadapter.ErrPermissionError}, chainadapter.NewValidationError("signer does not hold DEFAULT_ADMIN_ROLE")
	}

	data, err := f.xp.Pack("updateRewardRate", uint8(activity), rate)
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.xp.Address, f.signer.Address(), "updateRewardRate", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}
	return resultFromRecord(record), nil
}

// GrantMinterRole grants MINTER_ROLE to addr, short-circuiting with success
// if addr already holds the role.
func (f *Facade) GrantMinterRole(ctx context.Context, addr common.Address) (Result, error) {
	hasAdmin, err := f.hasRole(ctx, f.xp, AdminRole, f.signer.Address())
	if err != nil {
		f.log.Warnw("could not check admin role, proceeding; transaction will fail if unauthorized", "error", err)
	} else if !hasAdmin {
		return Result{Status: "error", ErrorKind: chainadapter.ErrPermissionError}, chainadapter.NewValidationError("signer does not hold DEFAULT_ADMIN_ROLE")
	}

	alreadyMinter, err := f.hasRole(ctx, f.xp, MinterRole, addr)
	if err == nil && alreadyMinter {
		f.log.Infow("address already holds MINTER_ROLE, skipping grant", "address", addr.Hex())
		return Result{Status: "success"}, nil
	}

	data, err := f.xp.Pack("grantRole", MinterRole, addr)
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.xp.Address, addr, "grantRole", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}
	return resultFromRecord(record), nil
}

// MintAchievement mints an achievement NFT of the given tier for addr.
func (f *Facade) MintAchievement(ctx context.Context, addr common.Address, tier Tier, tokenURI, description string) (Result, error) {
	if tier > Master {
		return Result{Status: "error", ErrorKind: chainadapter.ErrValidationError}, chainadapter.NewValidationError("invalid achievement tier")
	}

	data, err := f.achievement.Pack("mintAchievement", addr, uint8(tier), tokenURI, description)
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.achievement.Address, addr, "mintAchievement", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}

	result := resultFromRecord(record)
	if result.Status == "success" {
		result.TokenID = extractTokenID(record)
	}
	return result, nil
}

// UpdateAchievementMetadata rewrites the token URI for an already-minted
// achievement.
func (f *Facade) UpdateAchievementMetadata(ctx context.Context, tokenID *big.Int, tokenURI string) (Result, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return Result{Status: "error", ErrorKind: chainadapter.ErrValidationError}, chainadapter.NewValidationError("tokenId must be non-negative")
	}

	data, err := f.achievement.Pack("updateMetadata", tokenID, tokenURI)
	if err != nil {
		return Result{Status: "error"}, err
	}

	record, err := f.pipeline.Submit(ctx, f.achievement.Address, f.signer.Address(), "updateMetadata", data)
	f.putIfHashed(record)
	if err != nil {
		return resultFromRecord(record), err
	}
	return resultFromRecord(record), nil
}

// AwardAchievementByXP mints the highest achievement tier that totalXP
// qualifies for; it fails rather than defaulting to Beginner when totalXP
// qualifies for no tier at all.
func (f *Facade) AwardAchievementByXP(ctx context.Context, addr common.Address, totalXP uint64, tokenURI string) (Result, error) {
	tier, ok := TierForXP(totalXP)
	if !ok {
		return Result{Status: "error", ErrorKind: chainadapter.ErrValidationError}, chainadapter.NewValidationError(fmt.Sprintf("totalXP %d qualifies for no achievement tier", totalXP))
	}
	description := fmt.Sprintf("%s Level Achievement", tier.String())
	return f.MintAchievement(ctx, addr, tier, tokenURI, description)
}

// extractTokenID reads the ERC-721 Transfer event's indexed tokenId topic
// out of a confirmed mint's decoded logs.
func extractTokenID(record *chainadapter.TxRecord) *big.Int {
	for _, log := range record.DecodedLogs {
		if log.Event != "Transfer" {
			continue
		}
		if raw, ok := log.Args["tokenId"]; ok {
			if hash, ok := raw.(common.Hash); ok {
				return hash.Big()
			}
		}
	}
	return nil
}

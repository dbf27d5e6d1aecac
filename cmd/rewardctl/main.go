package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter"
	"github.com/ce20480/reward-orchestrator/internal/chainadapter/metrics"
	"github.com/ce20480/reward-orchestrator/internal/chainadapter/rpc"
	"github.com/ce20480/reward-orchestrator/internal/chainadapter/storage"
	"github.com/ce20480/reward-orchestrator/internal/cli"
	"github.com/ce20480/reward-orchestrator/internal/orchestratorconfig"
	"github.com/ce20480/reward-orchestrator/internal/reward"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const Version = "0.1.0"

func main() {
	start := time.Now()
	requestID := generateRequestID()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]

	if command == "help" || command == "--help" || command == "-h" {
		printUsage()
		return
	}
	if command == "version" {
		fmt.Printf("rewardctl v%s\n", Version)
		return
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrConfiguration, fmt.Sprintf("failed to initialize logger: %v", err)))
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	cfg, err := orchestratorconfig.Load()
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrConfiguration, err.Error()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
	defer cancel()

	chainMetrics := metrics.NewPrometheusMetrics()

	health := rpc.NewSimpleHealthTracker()
	client, err := rpc.Dial(ctx, cfg.RPCURLs, health, chainMetrics, log)
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrDial, err.Error()))
	}
	defer client.Close()

	signer, err := chainadapter.NewEthereumSigner(cfg.PrivateKeyHex, big.NewInt(cfg.ChainID))
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrConfiguration, fmt.Sprintf("failed to load signer: %v", err)))
	}

	xpHandle, err := chainadapter.LoadContractHandle(common.HexToAddress(cfg.XPContractAddress), chainadapter.XPContract, cfg.XPAbiPath())
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrConfiguration, fmt.Sprintf("failed to load XP contract ABI: %v", err)))
	}
	achievementHandle, err := chainadapter.LoadContractHandle(common.HexToAddress(cfg.AchievementContractAddress), chainadapter.AchievementContract, cfg.AchievementAbiPath())
	if err != nil {
		fail(requestID, start, cli.NewError(cli.ErrConfiguration, fmt.Sprintf("failed to load achievement contract ABI: %v", err)))
	}

	nonces := chainadapter.NewNonceSerializer(signer.Address(), client, log)
	rateLimiter := chainadapter.NewRateLimiter(cfg.RateLimiterMaxTokens, cfg.RateLimiterRefillRate, cfg.RateLimiterRefillInterval, log)
	fees := chainadapter.NewFeeOracle(client, log)
	builder := chainadapter.NewTxBuilder(big.NewInt(cfg.ChainID), signer.Address(), client, nonces, fees, log)

	ledger := storage.NewTransactionLedger(&chainReaderAdapter{client: client})

	chainIDLabel := strconv.FormatInt(cfg.ChainID, 10)

	// Each pipeline decodes receipt logs against its own contract's ABI: XP
	// operations go through xpPipeline, achievement operations through
	// achievementPipeline. Both share the builder, signer, rate limiter and
	// nonce serializer.
	xpPipeline := chainadapter.NewSubmissionPipeline(client, builder, signer, rateLimiter, nonces, xpHandle, chainIDLabel, chainMetrics, log)
	achievementPipeline := chainadapter.NewSubmissionPipeline(client, builder, signer, rateLimiter, nonces, achievementHandle, chainIDLabel, chainMetrics, log)

	facade := reward.NewFacade(xpPipeline, client, signer, xpHandle, achievementHandle, ledger, log)
	achievementFacade := reward.NewFacade(achievementPipeline, client, signer, xpHandle, achievementHandle, ledger, log)

	data, cmdErr := dispatch(ctx, command, args, facade, achievementFacade, ledger, chainMetrics)
	if cmdErr != nil {
		fail(requestID, start, cmdErr)
	}

	cli.WriteJSON(cli.Response{
		Success:    true,
		Data:       data,
		RequestID:  requestID,
		CliVersion: Version,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// dispatch routes command to the matching façade operation. The achievement
// facade is wired against the achievement pipeline so receipts decode
// against the achievement contract's ABI instead of the XP contract's.
func dispatch(ctx context.Context, command string, args []string, facade, achievementFacade *reward.Facade, ledger *storage.TransactionLedger, chainMetrics metrics.ChainMetrics) (interface{}, *cli.Error) {
	switch command {
	case "metrics":
		return map[string]interface{}{
			"summary": chainMetrics.GetMetrics(),
			"health":  chainMetrics.GetHealthStatus(),
			"export":  chainMetrics.Export(),
		}, nil
	case "award-xp":
		if len(args) < 2 {
			return nil, cli.NewError(cli.ErrUsage, "usage: award-xp <address> <activity>")
		}
		activity, err := parseActivity(args[1])
		if err != nil {
			return nil, cli.NewError(cli.ErrUsage, err.Error())
		}
		res, err := facade.AwardXP(ctx, common.HexToAddress(args[0]), activity)
		return resultToResponse(res, err)

	case "award-custom-xp":
		if len(args) < 3 {
			return nil, cli.NewError(cli.ErrUsage, "usage: award-custom-xp <address> <amount> <activity>")
		}
		amount, ok := new(big.Int).SetString(args[1], 10)
		if !ok {
			return nil, cli.NewError(cli.ErrUsage, fmt.Sprintf("invalid amount: %s", args[1]))
		}
		activity, err := parseActivity(args[2])
		if err != nil {
			return nil, cli.NewError(cli.ErrUsage, err.Error())
		}
		res, err := facade.AwardCustomXP(ctx, common.HexToAddress(args[0]), amount, activity)
		return resultToResponse(res, err)

	case "update-reward-rate":
		if len(args) < 2 {
			return nil, cli.NewError(cli.ErrUsage, "usage: update-reward-rate <activity> <rate>")
		}
		activity, err := parseActivity(args[0])
		if err != nil {
			return nil, cli.NewError(cli.ErrUsage, err.Error())
		}
		rate, ok := new(big.Int).SetString(args[1], 10)
		if !ok {
			return nil, cli.NewError(cli.ErrUsage, fmt.Sprintf("invalid rate: %s", args[1]))
		}
		res, err := facade.UpdateRewardRate(ctx, activity, rate)
		return resultToResponse(res, err)

	case "grant-minter-role":
		if len(args) < 1 {
			return nil, cli.NewError(cli.ErrUsage, "usage: grant-minter-role <address>")
		}
		res, err := facade.GrantMinterRole(ctx, common.HexToAddress(args[0]))
		return resultToResponse(res, err)

	case "mint-achievement":
		if len(args) < 3 {
			return nil, cli.NewError(cli.ErrUsage, "usage: mint-achievement <address> <tier> <tokenURI> [description]")
		}
		tier, err := parseTier(args[1])
		if err != nil {
			return nil, cli.NewError(cli.ErrUsage, err.Error())
		}
		description := ""
		if len(args) > 3 {
			description = args[3]
		}
		res, err := achievementFacade.MintAchievement(ctx, common.HexToAddress(args[0]), tier, args[2], description)
		return resultToResponse(res, err)

	case "award-achievement-by-xp":
		if len(args) < 3 {
			return nil, cli.NewError(cli.ErrUsage, "usage: award-achievement-by-xp <address> <totalXP> <tokenURI>")
		}
		totalXP, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return nil, cli.NewError(cli.ErrUsage, fmt.Sprintf("invalid totalXP: %s", args[1]))
		}
		res, err := achievementFacade.AwardAchievementByXP(ctx, common.HexToAddress(args[0]), totalXP, args[2])
		return resultToResponse(res, err)

	case "update-achievement-metadata":
		if len(args) < 2 {
			return nil, cli.NewError(cli.ErrUsage, "usage: update-achievement-metadata <tokenId> <tokenURI>")
		}
		tokenID, ok := new(big.Int).SetString(args[0], 10)
		if !ok {
			return nil, cli.NewError(cli.ErrUsage, fmt.Sprintf("invalid tokenId: %s", args[0]))
		}
		res, err := achievementFacade.UpdateAchievementMetadata(ctx, tokenID, args[1])
		return resultToResponse(res, err)

	case "transaction-status":
		if len(args) < 1 {
			return nil, cli.NewError(cli.ErrUsage, "usage: transaction-status <hash>")
		}
		record, err := ledger.Get(ctx, common.HexToHash(args[0]))
		if err != nil {
			if ce, ok := err.(*chainadapter.ChainError); ok {
				return nil, cli.NewError(string(ce.Kind), ce.Message)
			}
			return nil, cli.NewError(string(chainadapter.ErrUnexpectedError), err.Error())
		}
		return record, nil

	case "address-transactions":
		if len(args) < 1 {
			return nil, cli.NewError(cli.ErrUsage, "usage: address-transactions <address>")
		}
		return ledger.ListByAddress(common.HexToAddress(args[0])), nil

	default:
		return nil, cli.NewError(cli.ErrUsage, fmt.Sprintf("unknown command: %s", command))
	}
}

func resultToResponse(res reward.Result, err error) (interface{}, *cli.Error) {
	if err != nil {
		if ce, ok := err.(*chainadapter.ChainError); ok {
			return res, cli.NewError(string(ce.Kind), ce.Message)
		}
		return res, cli.NewError(string(chainadapter.ErrUnexpectedError), err.Error())
	}
	return res, nil
}

func parseActivity(s string) (reward.Activity, error) {
	switch s {
	case "LessonCompletion", "0":
		return reward.LessonCompletion, nil
	case "DatasetContribution", "1":
		return reward.DatasetContribution, nil
	case "DailyPractice", "2":
		return reward.DailyPractice, nil
	case "QuizCompletion", "3":
		return reward.QuizCompletion, nil
	case "AchievementEarned", "4":
		return reward.AchievementEarned, nil
	default:
		return 0, fmt.Errorf("unknown activity: %s", s)
	}
}

func parseTier(s string) (reward.Tier, error) {
	switch s {
	case "Beginner", "0":
		return reward.Beginner, nil
	case "Intermediate", "1":
		return reward.Intermediate, nil
	case "Advanced", "2":
		return reward.Advanced, nil
	case "Expert", "3":
		return reward.Expert, nil
	case "Master", "4":
		return reward.Master, nil
	default:
		return 0, fmt.Errorf("unknown tier: %s", s)
	}
}

func fail(requestID string, start time.Time, cliErr *cli.Error) {
	cli.WriteJSON(cli.Response{
		Success:    false,
		Error:      cliErr,
		RequestID:  requestID,
		CliVersion: Version,
		DurationMs: time.Since(start).Milliseconds(),
	})
	os.Exit(1)
}

func generateRequestID() string {
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

// chainReaderAdapter narrows rpc.FailoverClient's ethclient-shaped methods
// down to the denormalized tuples storage.ChainReader expects, so the
// ledger never imports go-ethereum's tx/receipt types directly.
type chainReaderAdapter struct {
	client *rpc.FailoverClient
}

func (a *chainReaderAdapter) TransactionByHash(ctx context.Context, hash common.Hash) (pending bool, blockNumber uint64, found bool, err error) {
	tx, isPending, err := a.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, 0, false, nil
		}
		return false, 0, false, err
	}
	if tx == nil {
		return false, 0, false, nil
	}
	return isPending, 0, true, nil
}

func (a *chainReaderAdapter) TransactionReceipt(ctx context.Context, hash common.Hash) (blockNumber uint64, gasUsed uint64, status uint64, found bool, err error) {
	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, err
	}
	if receipt == nil {
		return 0, 0, 0, false, nil
	}
	blockNum := uint64(0)
	if receipt.BlockNumber != nil {
		blockNum = receipt.BlockNumber.Uint64()
	}
	return blockNum, receipt.GasUsed, receipt.Status, true, nil
}

func printUsage() {
	fmt.Println("rewardctl - Blockchain reward transaction orchestrator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rewardctl award-xp <address> <activity>")
	fmt.Println("  rewardctl award-custom-xp <address> <amount> <activity>")
	fmt.Println("  rewardctl update-reward-rate <activity> <rate>")
	fmt.Println("  rewardctl grant-minter-role <address>")
	fmt.Println("  rewardctl mint-achievement <address> <tier> <tokenURI> [description]")
	fmt.Println("  rewardctl award-achievement-by-xp <address> <totalXP> <tokenURI>")
	fmt.Println("  rewardctl update-achievement-metadata <tokenId> <tokenURI>")
	fmt.Println("  rewardctl transaction-status <hash>")
	fmt.Println("  rewardctl address-transactions <address>")
	fmt.Println("  rewardctl metrics")
	fmt.Println("  rewardctl version")
	fmt.Println("  rewardctl help")
	fmt.Println()
	fmt.Println("All configuration is read from the environment: RPC_URL, PRIVATE_KEY,")
	fmt.Println("XP_CONTRACT_ADDRESS, ACHIEVEMENT_CONTRACT_ADDRESS, CHAIN_ID, ABI_DIRECTORY.")
}

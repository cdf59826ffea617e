package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/config"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/action"
	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/signer"
	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/wallet"
)

// app 命令共享的依赖，按需懒加载
type app struct {
	configPath string
	cfg        *config.Config
	logger     client.Logger

	rpc     client.Client
	backend client.BackendClient
	closers []func() error
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Create and operate shareable transfer links",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultPath+")")

	root.AddCommand(
		newSubaccountCommand(a),
		newShareCodeCommand(a),
		newFeeCommand(a),
		newValidateTotalCommand(a),
		newKeystoreCommand(a),
		newLinkCommand(a),
		newActionCommand(a),
	)
	return root, a
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger()
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) servicesConfig() (*services.Config, error) {
	return a.cfg.ServicesConfig()
}

// backendClient 后端 JSON-RPC 客户端
func (a *app) backendClient() (client.Client, client.BackendClient, error) {
	if a.backend != nil {
		return a.rpc, a.backend, nil
	}
	c, err := client.NewClient(a.cfg.BackendClientConfig(client.WithComponent(a.logger, "backend")))
	if err != nil {
		return nil, nil, fmt.Errorf("connect backend: %w", err)
	}
	a.rpc = c
	a.backend = client.NewBackendClientFromClient(c)
	a.closers = append(a.closers, a.backend.Close)
	return a.rpc, a.backend, nil
}

// oracle 配置了静态代币时使用内存 Oracle，否则走后端
func (a *app) oracle() (token.Oracle, error) {
	static, ok, err := a.cfg.StaticOracle()
	if err != nil {
		return nil, err
	}
	if ok {
		return static, nil
	}
	c, _, err := a.backendClient()
	if err != nil {
		return nil, err
	}
	svc, err := a.servicesConfig()
	if err != nil {
		return nil, err
	}
	return token.NewRPCOracle(c, svc.MetadataCacheSize)
}

func (a *app) feeService() (*fee.Service, token.Oracle, error) {
	o, err := a.oracle()
	if err != nil {
		return nil, nil, err
	}
	svc, err := a.servicesConfig()
	if err != nil {
		return nil, nil, err
	}
	return fee.NewService(o, svc, client.WithComponent(a.logger, "fee")), o, nil
}

// openWallet 从 keystore 加载钱包，密码取自 LINK_KEYSTORE_PASSWORD
func (a *app) openWallet(principal string) (wallet.Wallet, error) {
	if principal == "" {
		return nil, errors.New("--wallet is required")
	}
	km, err := wallet.NewKeystoreManager(a.cfg.Keystore.Dir)
	if err != nil {
		return nil, err
	}
	return km.LoadWallet(principal, os.Getenv("LINK_KEYSTORE_PASSWORD"))
}

// signerConnector 远端签名器或本地签名
//
// 配置了 signer.endpoint 时：local 为 true 则用钱包本地签名，把已签名调用发往该端点；
// 否则把整个批量请求交给远端签名器。
func (a *app) signerConnector(w wallet.Wallet, local bool) (signer.Connector, error) {
	sc := a.cfg.SignerClientConfig(client.WithComponent(a.logger, "signer"))
	if sc == nil {
		return signer.Static(nil), nil
	}
	c, err := client.NewClient(sc)
	if err != nil {
		return nil, fmt.Errorf("connect signer: %w", err)
	}
	a.closers = append(a.closers, c.Close)

	if local {
		return signer.Static(signer.NewLocalSigner(w, signer.NewRPCCaller(c), signer.WithLogger(a.logger))), nil
	}
	return signer.Static(signer.NewRPCTransport(c)), nil
}

// engine 绑定签名器的执行引擎；签名器不可用时仍返回降级引擎
func (a *app) engine(w wallet.Wallet, local bool) (*action.Engine, error) {
	_, backend, err := a.backendClient()
	if err != nil {
		return nil, err
	}
	svc, err := a.servicesConfig()
	if err != nil {
		return nil, err
	}

	metrics := action.NewMetrics()
	a.serveMetrics(metrics)

	e := action.NewEngine(backend, action.StaticAccount(types.Wallet{Address: w.Principal().String()}),
		action.WithValidation(svc.BatchValidation),
		action.WithTreasury(svc.TreasuryCanisterID),
		action.WithLogger(client.WithComponent(a.logger, "action")),
		action.WithMetrics(metrics),
	)
	connector, err := a.signerConnector(w, local)
	if err != nil {
		return nil, err
	}
	if err := e.Initialize(connector); err != nil && !errors.Is(err, action.ErrSignerUnavailable) {
		return nil, err
	}
	return e, nil
}

func (a *app) serveMetrics(m *action.Metrics) {
	if a.cfg.Metrics.Listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server stopped", "error", err)
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.logger.Info("Serving metrics", "listen", a.cfg.Metrics.Listen)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/team-renaissance/neo-wallet-adapter/internal/config"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/adapter"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/errors"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/log"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/neo"
	"github.com/team-renaissance/neo-wallet-adapter/pkg/walletconnect"
)

func main() {
	log.Infof("Starting wallet adapter demo")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	config.Read()
	log.SetLevel(config.Global.LogLevel)
	if err := errors.NewSentryReporter(config.Global.SentryDSN); err != nil {
		log.Fatal(err)
	}
	errors.NewLarkReporter(config.Global.LarkAlarmWebhook, time.Minute)

	wc := config.Global.WalletConnect
	wallet := adapter.New(adapter.Config{
		Logger:   wc.Logger,
		RelayURL: wc.RelayURL,
		Options: walletconnect.ConnectOptions{
			App: walletconnect.AppMetadata{
				Name:        wc.App.Name,
				Description: wc.App.Description,
				URL:         wc.App.URL,
				Icons:       wc.App.Icons,
			},
			Chains:     wc.Chains,
			Methods:    wc.Methods,
			DisplayURI: displayPairingCode(wc.QRCodePath),
		},
	})
	wallet.On(adapter.EventConnect, func(adapter.Event) {
		log.Infof("wallet connected, account %v", wallet.Address())
	})
	wallet.On(adapter.EventDisconnect, func(adapter.Event) {
		log.Info("wallet disconnected")
	})
	wallet.On(adapter.EventError, func(e adapter.Event) {
		log.Error(e.Err)
	})

	ctx := context.Background()
	if err := wallet.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer wallet.Disconnect(ctx)

	result, err := wallet.TestInvoke(ctx, neo.InvokeRequest{
		ContractInvocation: neo.ContractInvocation{
			ScriptHash: wc.SampleContract.ScriptHash,
			Operation:  wc.SampleContract.Operation,
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	if result.Status == neo.StatusSuccess {
		log.Infof("sample invocation halted, stack:%v", result.Data.Stack)
	} else {
		log.Warnf("sample invocation faulted, message:%v code:%v", result.Message, result.Code)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// displayPairingCode renders the pairing URI as a QR PNG at path and logs
// where to find it.
func displayPairingCode(path string) walletconnect.DisplayURIFn {
	return func(uri string, dismiss func()) {
		if err := walletconnect.WriteQRFile(uri, path); err != nil {
			log.Error(err)
			return
		}
		log.Infof("scan %v with your wallet to approve the pairing", path)
		log.Infof("pairing uri: %v", uri)
	}
}

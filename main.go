package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fachebot/evm-genie-bot/internal/config"
	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/server"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/telebot"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "显示版本信息")
	configFile  = flag.String("f", "etc/config.yaml", "the config file")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version)
		return
	}

	// 读取配置文件
	c, err := config.LoadFromFile(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}

	err = logger.Setup(logger.Options{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	})
	if err != nil {
		logger.Fatalf("设置日志失败, %s", err)
	}

	// 创建以太坊客户端
	rpcClient, err := rpc.DialContext(context.Background(), c.Chain.RpcUrl)
	if err != nil {
		logger.Fatalf("创建RPC客户端失败, rpcUrl: %s, %v", c.Chain.RpcUrl, err)
	}

	ethClient := ethclient.NewClient(rpcClient)
	chainId, err := ethClient.ChainID(context.Background())
	if err != nil {
		logger.Fatalf("查询链ID失败, rpcUrl: %s, %v", c.Chain.RpcUrl, err)
	}
	if c.Chain.Id == 0 {
		c.Chain.Id = chainId.Int64()
	} else if chainId.Int64() != c.Chain.Id {
		logger.Fatalf("链ID与配置不一致, ChainId: %d, got ChainId: %d", c.Chain.Id, chainId)
	}

	// 创建服务上下文
	svcCtx := svc.MustNewServiceContext(c, ethClient)

	// 运行健康检查和指标服务
	httpServer := server.NewServer(c.Server.Port)
	httpServer.Start()

	// 运行机器人服务
	botService, err := telebot.NewTeleBot(svcCtx)
	if err != nil {
		logger.Fatalf("创建机器人服务失败, %s", err)
	}
	botService.Start()

	// 等待程序退出
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	botService.Stop()
	httpServer.Stop()

	svcCtx.Close()
	rpcClient.Close()
	logger.Infof("服务已停止")
}

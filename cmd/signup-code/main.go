package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"accounthub/backend/internal/config"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/logger"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/service"
	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/storage/memory"
	"accounthub/backend/internal/storage/postgres"
)

// main 签发邀请码的运维工具。
func main() {
	email := flag.String("email", "", "绑定邮箱（可选）：限制只有该邮箱能兑换")
	code := flag.String("code", "", "显式指定 code 值（可选），缺省自动生成")
	maxUses := flag.Int("max-uses", 1, "最大兑换次数，0 表示不限")
	expiresIn := flag.Duration("expires-in", 0, "有效期，例如 72h，0 使用配置默认值")
	neverExpires := flag.Bool("never-expires", false, "永不过期")
	notes := flag.String("notes", "", "备注")
	send := flag.Bool("send", false, "创建后立即发送邀请邮件（需要 -email 或 -to）")
	to := flag.String("to", "", "邀请邮件收件人，缺省使用绑定邮箱")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("错误: 初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 选择存储：没有数据库配置时落到内存，码只在本进程可见
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		switch cfg.Database.Type {
		case "postgres":
			store, err = postgres.NewStore(cfg.Database.DSN)
		case "mysql":
			store, err = postgres.NewMySQLStore(cfg.Database.DSN)
		default:
			fmt.Printf("错误: 不支持的数据库类型 '%s'\n", cfg.Database.Type)
			os.Exit(1)
		}
		if err != nil {
			fmt.Printf("错误: 连接数据库失败: %v\n", err)
			os.Exit(1)
		}
	} else {
		store = memory.NewStore()
		fmt.Println("警告: 未配置数据库，邀请码仅存在于本进程内存中")
	}
	defer store.Close()

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:         cfg.SMTP.Host,
			Port:         cfg.SMTP.Port,
			Username:     cfg.SMTP.Username,
			Password:     cfg.SMTP.Password,
			From:         cfg.SMTP.From,
			MaxPerSecond: cfg.SMTP.RatePerSecond,
		})
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	bus := event.NewBus(log)
	codes := service.NewSignupCodeService(store, bus, notifier, cfg.Accounts.SignupCodeExpiry)

	sc, err := codes.Create(service.CreateSignupCodeInput{
		Email:        *email,
		Code:         *code,
		MaxUses:      *maxUses,
		ExpiresIn:    *expiresIn,
		NeverExpires: *neverExpires,
		Notes:        *notes,
	})
	if err != nil {
		fmt.Printf("错误: 创建邀请码失败: %v\n", err)
		os.Exit(1)
	}
	if err := codes.Save(sc); err != nil {
		fmt.Printf("错误: 保存邀请码失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 邀请码已创建")
	fmt.Printf("  Code:      %s\n", sc.Code)
	if sc.Email != "" {
		fmt.Printf("  Email:     %s\n", sc.Email)
	}
	fmt.Printf("  MaxUses:   %d\n", sc.MaxUses)
	if sc.ExpiresAt != nil {
		fmt.Printf("  ExpiresAt: %s\n", sc.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("  ExpiresAt: never")
	}

	if *send {
		recipient := *to
		if recipient == "" {
			recipient = sc.Email
		}
		if recipient == "" {
			fmt.Println("错误: 发送邀请需要 -email 或 -to")
			os.Exit(1)
		}
		if err := codes.Send(sc, recipient); err != nil {
			fmt.Printf("错误: 发送邀请邮件失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ 邀请邮件已发送至 %s\n", recipient)
	}
}

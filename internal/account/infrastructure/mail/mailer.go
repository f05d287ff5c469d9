// Package mail 验证邮件发送
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/utils"
	"github.com/wyfcoding/storefront/internal/account/domain"
	"github.com/wyfcoding/storefront/pkg/config"
)

// LogMailer 只写日志，开发环境使用
type LogMailer struct{}

// Send 实现 domain.Mailer
func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logging.Info(ctx, "mail (log driver)", "to", to, "subject", subject, "body", body)
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer 通过 SMTP 发送
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	send  sendFunc
	retry utils.RetryConfig
	now   func() time.Time
}

// NewSMTPMailer 创建 SMTP 发送器，未配置用户名时不做认证
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr:  net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:  cfg.Host,
		auth:  auth,
		from:  cfg.From,
		send:  smtp.SendMail,
		retry: utils.DefaultRetryConfig(),
		now:   time.Now,
	}
}

// Send 实现 domain.Mailer
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("mail: header contains line break")
	}
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"Date: " + m.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	// 连接类故障按指数退避重试
	err := utils.Retry(ctx, func() error {
		return m.send(m.addr, m.auth, m.from, []string{to}, []byte(msg))
	}, m.retry)
	if err != nil {
		logging.Error(ctx, "smtp send failed", "to", to, "error", err)
		return fmt.Errorf("send mail: %w", err)
	}
	logging.Info(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}

// New 按配置选择驱动
func New(cfg config.MailConfig) domain.Mailer {
	if cfg.Driver == "smtp" {
		return NewSMTPMailer(cfg)
	}
	return LogMailer{}
}

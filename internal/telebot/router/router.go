package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/metrics"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoHandler = errors.New("no handler")

// Request 一次回调或提示回复的上下文
type Request struct {
	ChatId  int64
	Session session.Session
	Payload callback.Payload
	Update  tgbotapi.Update
}

// MessageId 触发回调的消息ID
func (r *Request) MessageId() int {
	if r.Update.CallbackQuery != nil && r.Update.CallbackQuery.Message != nil {
		return r.Update.CallbackQuery.Message.MessageID
	}
	if r.Update.Message != nil {
		return r.Update.Message.MessageID
	}
	return 0
}

type HandlerFunc func(ctx context.Context, req *Request) error

type PromptHandlerFunc func(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error

type SessionResolver interface {
	ResolveSession(sessionId string) (session.Session, error)
}

type Router struct {
	dedup          *session.CallbackDedup
	sessions       SessionResolver
	metrics        *metrics.BotMetrics
	handlers       map[callback.Kind]HandlerFunc
	promptHandlers map[session.PromptKind]PromptHandlerFunc
}

func NewRouter(dedup *session.CallbackDedup, sessions SessionResolver, botMetrics *metrics.BotMetrics) *Router {
	return &Router{
		dedup:          dedup,
		sessions:       sessions,
		metrics:        botMetrics,
		handlers:       make(map[callback.Kind]HandlerFunc),
		promptHandlers: make(map[session.PromptKind]PromptHandlerFunc),
	}
}

func (r *Router) HandleFunc(kind callback.Kind, handler HandlerFunc) {
	r.handlers[kind] = handler
}

func (r *Router) HandlePrompt(kind session.PromptKind, handler PromptHandlerFunc) {
	r.promptHandlers[kind] = handler
}

// Route 分发回调查询, 重复/无效/未知会话直接丢弃, 返回是否已分发
func (r *Router) Route(ctx context.Context, update tgbotapi.Update) (bool, error) {
	query := update.CallbackQuery
	if query == nil {
		return false, nil
	}

	if r.dedup != nil && r.dedup.Seen(query.ID) {
		logger.Debugf("[Router] 丢弃重复回调, id: %s, data: %s", query.ID, query.Data)
		r.metrics.ObserveDroppedCallback("duplicate")
		return false, nil
	}

	payload, err := callback.Decode(query.Data)
	if err != nil {
		logger.Warnf("[Router] 解析回调数据失败, id: %s, data: %s, %v", query.ID, query.Data, err)
		r.metrics.ObserveDroppedCallback("malformed")
		return false, nil
	}

	s, err := r.sessions.ResolveSession(payload.SessionId)
	if err != nil {
		logger.Infof("[Router] 会话不存在, id: %s, session: %s", query.ID, payload.SessionId)
		r.metrics.ObserveDroppedCallback("unknown_session")
		return false, nil
	}

	if query.From != nil && query.From.UserName != s.Username {
		logger.Warnf("[Router] 会话用户不匹配, id: %s, session: %s, from: %s", query.ID, s.Id, query.From.UserName)
		r.metrics.ObserveDroppedCallback("foreign_user")
		return false, nil
	}

	handler, ok := r.handlers[payload.Kind]
	if !ok {
		logger.Warnf("[Router] 未注册的回调类型, id: %s, kind: %s", query.ID, payload.Kind)
		r.metrics.ObserveDroppedCallback("unknown_kind")
		return false, nil
	}

	r.metrics.ObserveCallback(string(payload.Kind))

	chatId := s.ChatId
	if query.Message != nil && query.Message.Chat != nil {
		chatId = query.Message.Chat.ID
	}
	req := &Request{ChatId: chatId, Session: s, Payload: payload, Update: update}
	if err = handler(ctx, req); err != nil {
		return true, fmt.Errorf("callback %s: %w", payload.Kind, err)
	}
	return true, nil
}

// RoutePrompt 处理待回复提示, 没有对应处理器时返回 ErrNoHandler
func (r *Router) RoutePrompt(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error {
	handler, ok := r.promptHandlers[prompt.Kind]
	if !ok {
		return fmt.Errorf("%w: prompt %s", ErrNoHandler, prompt.Kind)
	}
	return handler(ctx, prompt, msg)
}

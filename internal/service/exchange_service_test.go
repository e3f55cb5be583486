package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"banter/internal/config"
	"banter/internal/ledger"
	"banter/internal/model"
	"banter/internal/repository"
)

// fakeLedger 内存账本
type fakeLedger struct {
	mu       sync.Mutex
	balance  int
	getErr   error
	debitErr error
	debits   []int
}

func (f *fakeLedger) GetBalance(ctx context.Context, userID string) (ledger.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return ledger.Balance{}, f.getErr
	}
	return ledger.Balance{Purchased: f.balance, Credits: f.balance}, nil
}

func (f *fakeLedger) HasEnough(ctx context.Context, userID string, cost int) (bool, error) {
	balance, err := f.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.Total() >= cost, nil
}

func (f *fakeLedger) Debit(ctx context.Context, userID string, amount int) (ledger.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return ledger.Balance{}, f.debitErr
	}
	if f.balance < amount {
		return ledger.Balance{Purchased: f.balance, Credits: f.balance}, ledger.ErrInsufficientFunds
	}
	f.balance -= amount
	f.debits = append(f.debits, amount)
	return ledger.Balance{Purchased: f.balance, Credits: f.balance}, nil
}

// fakePersonas 记录查询次数，验证余额不足时不触发角色查询
type fakePersonas struct {
	personas map[string]*model.Persona
	lookups  int
}

func (f *fakePersonas) Get(ctx context.Context, id string) (*model.Persona, error) {
	f.lookups++
	persona, ok := f.personas[id]
	if !ok {
		return nil, fmt.Errorf("persona %s: %w", id, repository.ErrNotFound)
	}
	return persona, nil
}

// fakeConvs 对话目录，GetOrCreate 加锁模拟存储层的并发收敛
type fakeConvs struct {
	mu      sync.Mutex
	convs   map[string]*model.Conversation
	creates int
	touches []string
}

func pairKey(userID, personaID string) string { return userID + "/" + personaID }

func (f *fakeConvs) GetOrCreate(ctx context.Context, userID, personaID string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(userID, personaID)
	if conv, ok := f.convs[key]; ok {
		return conv, nil
	}
	f.creates++
	conv := &model.Conversation{
		ID:        fmt.Sprintf("conv-%d", f.creates),
		UserID:    userID,
		PersonaID: personaID,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if f.convs == nil {
		f.convs = map[string]*model.Conversation{}
	}
	f.convs[key] = conv
	return conv, nil
}

func (f *fakeConvs) FindByPair(ctx context.Context, userID, personaID string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[pairKey(userID, personaID)]; ok {
		return conv, nil
	}
	return nil, fmt.Errorf("conversation: %w", repository.ErrNotFound)
}

func (f *fakeConvs) Touch(ctx context.Context, conversationID, lastMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, lastMessage)
	return nil
}

// fakeLog 内存消息日志，按对话分配递增 seq
type fakeLog struct {
	mu           sync.Mutex
	messages     map[string][]model.Message
	seq          map[string]int64
	botAppendErr error
	recentErr    error
}

func (f *fakeLog) Append(ctx context.Context, conversationID, sender, content string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sender == model.SenderBot && f.botAppendErr != nil {
		return nil, f.botAppendErr
	}
	if f.messages == nil {
		f.messages = map[string][]model.Message{}
		f.seq = map[string]int64{}
	}
	f.seq[conversationID]++
	msg := model.Message{
		ID:             fmt.Sprintf("%s-%d", conversationID, f.seq[conversationID]),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Seq:            f.seq[conversationID],
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return &msg, nil
}

func (f *fakeLog) Recent(ctx context.Context, conversationID string, limit int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	all := f.messages[conversationID]
	if int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	out := make([]model.Message, len(all))
	copy(out, all)
	return out, nil
}

func (f *fakeLog) count(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[conversationID])
}

// fakeAI 回复生成器
type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) Generate(ctx context.Context, persona *model.Persona, latestUserMessage string, contextWindow []model.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.reply, nil
}

type exchangeFixture struct {
	ledger   *fakeLedger
	personas *fakePersonas
	convs    *fakeConvs
	log      *fakeLog
	ai       *fakeAI
	svc      *ExchangeService
}

func newExchangeFixture(balance int) *exchangeFixture {
	f := &exchangeFixture{
		ledger: &fakeLedger{balance: balance},
		personas: &fakePersonas{personas: map[string]*model.Persona{
			"luna": {ID: "luna", Name: "Luna", Personality: "warm and playful"},
		}},
		convs: &fakeConvs{},
		log:   &fakeLog{},
		ai:    &fakeAI{reply: "hello there"},
	}
	f.svc = NewExchangeService(f.ledger, f.personas, f.convs, f.log, f.ai, &config.ChatConfig{
		MessageCost:       1,
		ContextWindow:     15,
		HistoryLimit:      200,
		GenerationTimeout: time.Second,
	})
	return f
}

func sendReq() *model.SendMessageRequest {
	return &model.SendMessageRequest{UserID: "u1", BotProfileID: "luna", Message: "hi"}
}

func TestExchangeService_Send(t *testing.T) {
	ctx := context.Background()

	Convey("参数校验失败无任何副作用", t, func() {
		f := newExchangeFixture(5)
		_, err := f.svc.Send(ctx, &model.SendMessageRequest{UserID: "u1", BotProfileID: "luna", Message: "  "})
		So(errors.Is(err, ErrValidation), ShouldBeTrue)
		So(f.personas.lookups, ShouldEqual, 0)
		So(f.convs.creates, ShouldEqual, 0)
	})

	Convey("余额为 0 时拒绝，角色从未被查询，没有消息落库", t, func() {
		f := newExchangeFixture(0)
		_, err := f.svc.Send(ctx, sendReq())
		So(errors.Is(err, ErrInsufficientCredits), ShouldBeTrue)

		var insufficient *InsufficientCreditsError
		So(errors.As(err, &insufficient), ShouldBeTrue)
		So(insufficient.Remaining, ShouldEqual, 0)

		So(f.personas.lookups, ShouldEqual, 0)
		So(f.convs.creates, ShouldEqual, 0)
		So(len(f.ledger.debits), ShouldEqual, 0)
	})

	Convey("账本查询失败上报 LedgerUnavailable，不视为余额不足", t, func() {
		f := newExchangeFixture(5)
		f.ledger.getErr = ledger.ErrUnavailable
		_, err := f.svc.Send(ctx, sendReq())
		So(errors.Is(err, ErrLedgerUnavailable), ShouldBeTrue)
		So(errors.Is(err, ErrInsufficientCredits), ShouldBeFalse)
	})

	Convey("角色不存在上报 PersonaNotFound，无副作用", t, func() {
		f := newExchangeFixture(5)
		req := sendReq()
		req.BotProfileID = "nobody"
		_, err := f.svc.Send(ctx, req)
		So(errors.Is(err, ErrPersonaNotFound), ShouldBeTrue)
		So(f.convs.creates, ShouldEqual, 0)
		So(len(f.ledger.debits), ShouldEqual, 0)
	})

	Convey("余额 5、全链路成功：对话两条消息、余额变 4", t, func() {
		f := newExchangeFixture(5)
		resp, err := f.svc.Send(ctx, sendReq())
		So(err, ShouldBeNil)
		So(resp.BotResponse, ShouldEqual, "hello there")
		So(resp.BotName, ShouldEqual, "Luna")
		So(resp.CreditsRemaining, ShouldEqual, 4)
		So(resp.ConversationID, ShouldNotBeEmpty)
		So(resp.Timestamp.IsZero(), ShouldBeFalse)

		So(f.log.count(resp.ConversationID), ShouldEqual, 2)
		So(f.ledger.balance, ShouldEqual, 4)

		// 元数据刷新：每次交换恰好一次 touch，快照是回复文本
		So(len(f.convs.touches), ShouldEqual, 1)
		So(f.convs.touches[0], ShouldEqual, "hello there")

		Convey("恰好一条 user 一条 bot，seq 连续", func() {
			messages, err := f.log.Recent(ctx, resp.ConversationID, 10)
			So(err, ShouldBeNil)
			So(messages[0].Sender, ShouldEqual, model.SenderUser)
			So(messages[1].Sender, ShouldEqual, model.SenderBot)
			So(messages[1].Seq, ShouldEqual, messages[0].Seq+1)
		})
	})

	Convey("AI 生成失败：用户消息保留可检索，积分分文未动", t, func() {
		f := newExchangeFixture(5)
		f.ai.err = context.DeadlineExceeded
		_, err := f.svc.Send(ctx, sendReq())
		So(errors.Is(err, ErrAIGeneration), ShouldBeTrue)

		// 用户消息已落库
		conv, err := f.convs.FindByPair(ctx, "u1", "luna")
		So(err, ShouldBeNil)
		So(f.log.count(conv.ID), ShouldEqual, 1)

		history, err := f.svc.History(ctx, "u1", "luna")
		So(err, ShouldBeNil)
		So(len(history.Messages), ShouldEqual, 1)
		So(history.Messages[0].Sender, ShouldEqual, model.SenderUser)
		So(history.Messages[0].Content, ShouldEqual, "hi")

		// 余额不变
		So(f.ledger.balance, ShouldEqual, 5)
		So(len(f.ledger.debits), ShouldEqual, 0)
	})

	Convey("上下文读取失败按持久化失败终止：不生成、不扣积分", t, func() {
		f := newExchangeFixture(5)
		f.log.recentErr = errors.New("cursor timeout")
		_, err := f.svc.Send(ctx, sendReq())
		So(errors.Is(err, ErrPersistence), ShouldBeTrue)

		// 用户消息已落库且可检索
		conv, err := f.convs.FindByPair(ctx, "u1", "luna")
		So(err, ShouldBeNil)
		So(f.log.count(conv.ID), ShouldEqual, 1)

		// 积分分文未动
		So(f.ledger.balance, ShouldEqual, 5)
		So(len(f.ledger.debits), ShouldEqual, 0)
	})

	Convey("回复落库失败：同样不扣积分", t, func() {
		f := newExchangeFixture(5)
		f.log.botAppendErr = errors.New("disk full")
		_, err := f.svc.Send(ctx, sendReq())
		So(errors.Is(err, ErrPersistence), ShouldBeTrue)
		So(f.ledger.balance, ShouldEqual, 5)

		conv, err := f.convs.FindByPair(ctx, "u1", "luna")
		So(err, ShouldBeNil)
		So(f.log.count(conv.ID), ShouldEqual, 1)
	})

	Convey("扣款失败降级为警告，交换仍按成功返回", t, func() {
		f := newExchangeFixture(5)
		f.ledger.debitErr = ledger.ErrUnavailable

		resp, err := f.svc.Send(ctx, sendReq())
		So(err, ShouldBeNil)
		So(resp.BotResponse, ShouldEqual, "hello there")
		// 剩余余额来自兜底重读，不是扣减结果
		So(resp.CreditsRemaining, ShouldEqual, 5)

		// 两条消息都已落库
		conv, err := f.convs.FindByPair(ctx, "u1", "luna")
		So(err, ShouldBeNil)
		So(f.log.count(conv.ID), ShouldEqual, 2)
	})

	Convey("同一 (user, persona) 并发首次发送收敛到一个对话", t, func() {
		f := newExchangeFixture(100)

		const workers = 8
		var wg sync.WaitGroup
		respCh := make(chan *model.SendMessageResponse, workers)
		errCh := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := f.svc.Send(ctx, sendReq())
				if err != nil {
					errCh <- err
					return
				}
				respCh <- resp
			}()
		}
		wg.Wait()
		close(respCh)
		close(errCh)

		So(len(errCh), ShouldEqual, 0)

		ids := map[string]bool{}
		for resp := range respCh {
			ids[resp.ConversationID] = true
		}
		So(len(ids), ShouldEqual, 1)
		So(f.convs.creates, ShouldEqual, 1)

		// 消息只多不丢：每次交换两条
		for convID := range ids {
			So(f.log.count(convID), ShouldEqual, workers*2)
		}
		So(f.ledger.balance, ShouldEqual, 100-workers)
	})
}

func TestExchangeService_History(t *testing.T) {
	ctx := context.Background()

	Convey("History 查询", t, func() {
		f := newExchangeFixture(10)

		Convey("缺参数返回校验错误", func() {
			_, err := f.svc.History(ctx, "", "luna")
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
		})

		Convey("对话不存在返回空列表", func() {
			resp, err := f.svc.History(ctx, "u1", "luna")
			So(err, ShouldBeNil)
			So(resp.Messages, ShouldBeEmpty)
			So(resp.ConversationID, ShouldBeEmpty)
		})

		Convey("交换之后按时间正序返回", func() {
			_, err := f.svc.Send(ctx, sendReq())
			So(err, ShouldBeNil)

			resp, err := f.svc.History(ctx, "u1", "luna")
			So(err, ShouldBeNil)
			So(resp.ConversationID, ShouldNotBeEmpty)
			So(len(resp.Messages), ShouldEqual, 2)
			So(resp.Messages[0].Sender, ShouldEqual, model.SenderUser)
			So(resp.Messages[1].Sender, ShouldEqual, model.SenderBot)
		})
	})
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
)

// RabbitMQ 分析任务队列
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	declareMu    sync.Mutex
	declared     map[string]bool // exchange / queue / binding 是否已声明
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 建立连接并验证可以打开通道
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
	}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, err := conn.Channel()
			if err != nil {
				logger.Error().Err(err).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	ch := mq.getChannel()
	if ch == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道")
	}
	mq.putChannel(ch)
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	if v := r.channelPool.Get(); v != nil {
		if ch, ok := v.(*amqp.Channel); ok && !ch.IsClosed() {
			return ch
		}
	}
	ch, err := r.conn.Channel()
	if err != nil {
		logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
		return nil
	}
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

func (r *RabbitMQ) declareOnce(key string, declare func(ch *amqp.Channel) error) error {
	r.declareMu.Lock()
	defer r.declareMu.Unlock()
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)
	if err := declare(ch); err != nil {
		return err
	}
	r.declared[key] = true
	return nil
}

// EnsureExchange 声明持久化的 direct exchange
func (r *RabbitMQ) EnsureExchange(name string) error {
	if name == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	return r.declareOnce("exchange:"+name, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明exchange失败: %w", err)
		}
		return nil
	})
}

// EnsureQueue 声明持久化队列
func (r *RabbitMQ) EnsureQueue(name string) error {
	return r.declareOnce("queue:"+name, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明队列失败: %w", err)
		}
		return nil
	})
}

// BindQueue 绑定队列到 exchange
func (r *RabbitMQ) BindQueue(queue, exchange, routingKey string) error {
	return r.declareOnce(fmt.Sprintf("binding:%s:%s:%s", exchange, queue, routingKey), func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("绑定队列到exchange失败: %w", err)
		}
		return nil
	})
}

// SetupAnalysisTopology 声明分析任务使用的 exchange、队列和绑定
func (r *RabbitMQ) SetupAnalysisTopology() error {
	if err := r.EnsureExchange(r.cfg.Exchange); err != nil {
		return err
	}
	if err := r.EnsureQueue(r.cfg.AnalysisQueue); err != nil {
		return err
	}
	return r.BindQueue(r.cfg.AnalysisQueue, r.cfg.Exchange, r.cfg.AnalysisRoutingKey)
}

// PublishMessage 发布持久化消息
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	return ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	})
}

// PublishJSON 序列化后发布
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchange, routingKey, body)
}

// PublishAnalysisTask 把分析任务发送到配置的 exchange
func (r *RabbitMQ) PublishAnalysisTask(ctx context.Context, task AnalysisTask) error {
	return r.PublishJSON(ctx, r.cfg.Exchange, r.cfg.AnalysisRoutingKey, task)
}

// StartConsumer 在后台消费队列，ctx 取消后停止。
// handler 返回 true 时确认消息；返回 false 时首次投递重新入队，重复投递则丢弃。
// handler 的第二个参数表示这是最后一次投递，返回 false 后消息不会再出现。
func (r *RabbitMQ) StartConsumer(ctx context.Context, queue string, prefetch int, handler func(body []byte, lastAttempt bool) bool) error {
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("注册消费者失败: %w", err)
	}

	go func() {
		// 消费通道设置过 QoS，不放回池
		defer ch.Close()
		log := logger.Logger.With().Str("queue", queue).Logger()
		log.Info().Int("prefetch", prefetch).Msg("RabbitMQ消费者已启动")
		defer log.Info().Msg("RabbitMQ消费者已停止")

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("RabbitMQ投递通道已关闭")
					return
				}
				if handler(d.Body, d.Redelivered) {
					if err := d.Ack(false); err != nil {
						log.Error().Err(err).Msg("确认消息失败")
					}
					continue
				}
				if err := d.Nack(false, !d.Redelivered); err != nil {
					log.Error().Err(err).Msg("拒绝消息失败")
				}
			}
		}
	}()
	return nil
}

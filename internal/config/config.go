package config

import (
	"fmt"
	"log"

	"minegame/internal/model"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Chain  ChainConfig  `mapstructure:"chain"`
	Game   GameConfig   `mapstructure:"game"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	MiningResult  string `mapstructure:"mining_result"`
	SuspicionFlag string `mapstructure:"suspicion_flag"`
}

// ChainConfig 外部链配置
// nonce 的权威来源在链上的兑换合约里，本服务只读
type ChainConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`        // 节点 RPC 地址
	ClaimContract string `mapstructure:"claim_contract"` // 兑换合约地址（nonces(address) 视图）
	SignerKey     string `mapstructure:"signer_key"`     // 签名服务私钥（hex，生产环境应走 KMS）
}

type GameConfig struct {
	Mining    MiningConfig    `mapstructure:"mining"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	AntiCheat AntiCheatConfig `mapstructure:"anticheat"`
	Claim     ClaimConfig     `mapstructure:"claim"`
}

// ResourceRule 单种资源的掉落规则
type ResourceRule struct {
	Type      string  `mapstructure:"type"`       // 资源类型（必须在封闭枚举内）
	DropRate  float64 `mapstructure:"drop_rate"`  // 出矿概率 [0,1]
	MinAmount int64   `mapstructure:"min_amount"` // 单次产出下限
	MaxAmount int64   `mapstructure:"max_amount"` // 单次产出上限
}

type MiningConfig struct {
	MaxDistance         float64        `mapstructure:"max_distance"`          // 允许的最大采集距离
	CooldownSeconds     int            `mapstructure:"cooldown_seconds"`      // 两次成功之间的最小间隔
	RespawnDelaySeconds int            `mapstructure:"respawn_delay_seconds"` // 节点采空后的刷新延迟
	Resources           []ResourceRule `mapstructure:"resources"`
}

// RuleFor 返回指定资源类型的掉落规则
func (m *MiningConfig) RuleFor(resourceType string) (ResourceRule, bool) {
	for _, r := range m.Resources {
		if r.Type == resourceType {
			return r, true
		}
	}
	return ResourceRule{}, false
}

// MaxDropRate 所有资源中最高的配置掉率，反作弊用它作为成功率基线
func (m *MiningConfig) MaxDropRate() float64 {
	max := 0.0
	for _, r := range m.Resources {
		if r.DropRate > max {
			max = r.DropRate
		}
	}
	return max
}

type RateLimitConfig struct {
	WalletPerMinute int `mapstructure:"wallet_per_minute"` // 单钱包每分钟尝试上限
	IPPerMinute     int `mapstructure:"ip_per_minute"`     // 单连接每分钟尝试上限
}

// AntiCheatConfig 反作弊阈值
// 阈值属于运营策略，没有唯一正确值，全部走配置而不是写死常量
type AntiCheatConfig struct {
	MinSampleSize     int     `mapstructure:"min_sample_size"`     // 成功率判定的最小样本数
	SuccessRateMargin float64 `mapstructure:"success_rate_margin"` // 超出最高掉率多少比例才标记
	MaxMoveSpeed      float64 `mapstructure:"max_move_speed"`      // 合理位移速度上限（单位/秒）
}

type ClaimConfig struct {
	ExpireMinutes int              `mapstructure:"expire_minutes"` // 签名有效期
	MaxPerClaim   int64            `mapstructure:"max_per_claim"`  // 单次兑换代币上限
	TokenRates    map[string]int64 `mapstructure:"token_rates"`    // 资源 -> 代币 兑换比率
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if err := config.Game.Validate(); err != nil {
		log.Fatalf("游戏配置不合法: %v", err)
	}

	GlobalConfig = config
	return config
}

// Validate 启动期校验：掉落表里的资源类型必须全部在封闭枚举内，
// 掉率与产出区间必须合理，兑换比率不能引用未知资源
func (g *GameConfig) Validate() error {
	if len(g.Mining.Resources) == 0 {
		return fmt.Errorf("掉落表不能为空")
	}
	for _, r := range g.Mining.Resources {
		if !model.IsValidResourceType(r.Type) {
			return fmt.Errorf("未知资源类型: %s", r.Type)
		}
		if r.DropRate < 0 || r.DropRate > 1 {
			return fmt.Errorf("资源 %s 掉率越界: %f", r.Type, r.DropRate)
		}
		if r.MinAmount <= 0 || r.MaxAmount < r.MinAmount {
			return fmt.Errorf("资源 %s 产出区间不合法: [%d,%d]", r.Type, r.MinAmount, r.MaxAmount)
		}
	}
	for resourceType := range g.Claim.TokenRates {
		if !model.IsValidResourceType(resourceType) {
			return fmt.Errorf("兑换比率引用了未知资源类型: %s", resourceType)
		}
	}
	if g.Claim.MaxPerClaim <= 0 {
		return fmt.Errorf("单次兑换上限必须大于0")
	}
	return nil
}

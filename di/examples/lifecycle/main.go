package main

import (
	"fmt"

	"github.com/gocrud/infra/di"
	"github.com/gocrud/infra/lifecycle"
)

// 定义接口
type Logger interface {
	Log(msg string)
}

// 实现
type ConsoleLogger struct {
	Prefix string
}

func (c *ConsoleLogger) Log(msg string) {
	println(c.Prefix + ": " + msg)
}

// Connection 基础连接，打开与关闭由生命周期钩子驱动
type Connection struct {
	Logger Logger `di:""`

	_ lifecycle.PostConstruct `method:"Open"`
	_ lifecycle.PreDestroy    `method:"Release"`
}

func (c *Connection) Open() error {
	c.Logger.Log("connection opened")
	return nil
}

func (c *Connection) Release() {
	c.Logger.Log("connection released")
}

// UserRepository 在基础连接之上预热缓存
type UserRepository struct {
	Connection

	_ lifecycle.PostConstruct `method:"Warm"`
	_ lifecycle.PreDestroy    `method:"Flush"`
}

func (r *UserRepository) Warm()  { r.Logger.Log("cache warmed") }
func (r *UserRepository) Flush() { r.Logger.Log("cache flushed") }

func main() {
	c := di.NewContainer()

	di.Register[Logger](c, di.WithValue(&ConsoleLogger{Prefix: "APP"}))
	di.Register[*UserRepository](c)

	// 输出顺序：connection opened -> cache warmed
	if err := c.Build(); err != nil {
		fmt.Println("build failed:", err)
		return
	}

	repo, err := di.Resolve[*UserRepository](c)
	if err != nil {
		fmt.Println("resolve failed:", err)
		return
	}
	repo.Logger.Log("serving requests")

	// 输出顺序：cache flushed -> connection released
	_ = c.Close()
}

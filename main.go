// bankd is a multi-role banking backend. All state lives in fixed-size
// binary record files under DATA_DIR; balance mutations commit through a
// write-ahead transaction ledger with crash recovery on startup. The HTTP
// API serves synchronous operations; a RabbitMQ consumer applies
// asynchronously submitted transactions.
package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"bankd/bank"
	"bankd/models"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dataDir := envDefault("DATA_DIR", "data")
	b, err := bank.Open(dataDir)
	if err != nil {
		logrus.WithError(err).Fatal("cannot open bank data")
	}
	defer b.Close()

	if err := b.EnsureAdmin("admin", envDefault("ADMIN_PASSWORD", "admin")); err != nil {
		logrus.WithError(err).Fatal("cannot bootstrap admin user")
	}

	var rabbitMQ *RabbitMQ
	if os.Getenv("RABBITMQ_URI") != "" {
		rabbitMQ, err = NewRabbitMQ()
		if err != nil {
			logrus.WithError(err).Fatal("cannot connect to RabbitMQ")
		}
		defer rabbitMQ.Close()

		consumer := NewTransactionConsumer(b, rabbitMQ)
		go consumer.Start()
	} else {
		logrus.Warn("RABBITMQ_URI not set, async transactions disabled")
	}

	r := router(b, rabbitMQ)
	addr := ":" + envDefault("PORT", "8000")
	logrus.WithField("addr", addr).Info("bankd listening")
	logrus.Fatal(r.Run(addr))
}

// router wires every route; split from main so handler tests can build the
// same engine against a scratch data directory.
func router(b *bank.Bank, rabbitMQ *RabbitMQ) *gin.Engine {
	r := gin.Default()

	r.POST("/login", func(c *gin.Context) { login(c, b) })
	r.POST("/logout", authRequired(b), func(c *gin.Context) { logout(c, b) })

	staff := []models.Role{models.RoleAdmin, models.RoleManager}
	r.POST("/users", authRequired(b, staff...), func(c *gin.Context) { createUser(c, b) })
	r.GET("/users", authRequired(b, staff...), func(c *gin.Context) { getUsers(c, b) })
	r.PUT("/users/:id", authRequired(b, staff...), func(c *gin.Context) { modifyUser(c, b) })
	r.PUT("/users/:id/status", authRequired(b, staff...), func(c *gin.Context) { setUserStatus(c, b) })

	r.GET("/accounts/:no", authRequired(b), func(c *gin.Context) { getAccount(c, b) })
	r.PUT("/accounts/:no/status", authRequired(b, models.RoleManager), func(c *gin.Context) { setAccountStatus(c, b) })

	r.POST("/transfer", authRequired(b), func(c *gin.Context) { transfer(c, b) })
	r.POST("/transaction", authRequired(b), func(c *gin.Context) { queueTransaction(c, b, rabbitMQ) })
	r.GET("/transaction/:account_no", authRequired(b), func(c *gin.Context) { getTransactionHistory(c, b) })

	r.POST("/loans", authRequired(b, models.RoleCustomer), func(c *gin.Context) { applyLoan(c, b) })
	r.GET("/loans/pending", authRequired(b, models.RoleManager, models.RoleEmployee), func(c *gin.Context) { getPendingLoans(c, b) })
	r.PUT("/loans/:id/assign", authRequired(b, models.RoleManager), func(c *gin.Context) { assignLoan(c, b) })
	r.PUT("/loans/:id/decide", authRequired(b, models.RoleEmployee), func(c *gin.Context) { decideLoan(c, b) })

	r.POST("/feedback", authRequired(b, models.RoleCustomer), func(c *gin.Context) { postFeedback(c, b) })
	r.GET("/feedback", authRequired(b, staff...), func(c *gin.Context) { getFeedbacks(c, b) })

	return r
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

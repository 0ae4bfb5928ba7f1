package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// 接口上没有任何提权入口，第一个管理员只能从库里种。
// 这里负责把 bcrypt 哈希算好，输出一条可以直接执行的 SQL。
func main() {
	if len(os.Args) != 4 {
		log.Fatal("usage: go run ./cmd/tools/adminseed <email> <full_name> <password>")
	}
	email, fullName, password := os.Args[1], os.Args[2], os.Args[3]

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf(
		"INSERT INTO users (email, full_name, password_hash, role) VALUES ('%s', '%s', '%s', 'admin')\n"+
			"ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = 'admin';\n",
		sqlQuote(email), sqlQuote(fullName), sqlQuote(string(hash)),
	)
}

func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

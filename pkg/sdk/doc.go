// Package cypherrag embeds the cypherrag retrieval pipeline in a Go program.
//
// A search routes the question to graph labels, looks up entry nodes with a
// hybrid vector and keyword index, asks the chat model for a Cypher query,
// validates and corrects it once, fixes relationship directions against the
// schema and runs it on Neo4j.
//
//	client, err := cypherrag.New(ctx,
//	    cypherrag.WithNeo4j("neo4j://localhost:7687", "neo4j", "secret"),
//	    cypherrag.WithOpenAI("https://dashscope.aliyuncs.com/compatible-mode/v1", apiKey),
//	    cypherrag.WithChatModel("qwen-plus"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	res, err := client.Search(ctx, "华为Mate 40 pro多少钱",
//	    cypherrag.WithUserID("25"),
//	    cypherrag.WithHistory(cypherrag.UserTurn("你好"), cypherrag.BotTurn("您好")),
//	)
//
// When nothing is found the result holds a single sentinel record and Empty is true.
package cypherrag

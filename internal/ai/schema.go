package ai

import (
	"fmt"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
)

// postgresSchemaDescription is the table contract handed to the model when the
// store is Postgres. Keep it in sync with storage.PostgresStore.
const postgresSchemaDescription = `
The uniswap_events table has the following columns:
- id: bigint (primary key)
- block_number: bigint
- transaction_hash: text
- log_index: bigint (position of the log inside its block)
- event_name: text (case-sensitive, must be one of: 'Swap', 'Mint', 'Burn', 'Sync')
- pair_address: text (the Uniswap V2 pair contract address that emitted the event)
- token0_address: text (ERC-20 address of token0 in that pair, may be NULL)
- token1_address: text (ERC-20 address of token1 in that pair, may be NULL)
- timestamp: timestamp (block time, UTC)
- data_json: jsonb (the full event arguments; every amount is a decimal string)
- created_at: timestamp

Event arguments in data_json:
- Swap: sender, amount0In, amount1In, amount0Out, amount1Out, to
- Mint: sender, amount0, amount1
- Burn: sender, amount0, amount1, to
- Sync: reserve0, reserve1

Do NOT reference columns that do not exist (e.g. amount0in, liquidity_a).
To extract values from data_json use JSON operators and cast to numeric, for example:
  (data_json->>'amount0')::numeric
  (data_json->>'amount1Out')::numeric

Time-based filter examples:
  WHERE timestamp >= NOW() - INTERVAL '24 hours'
  WHERE timestamp BETWEEN '2024-04-01' AND '2024-04-16'

Example SQL (no trailing semicolons):
1. Count Swap events today:
  SELECT COUNT(*) AS count
  FROM uniswap_events
  WHERE event_name = 'Swap'
    AND timestamp >= CURRENT_DATE

2. Average liquidity per Mint event:
  SELECT AVG((data_json->>'amount0')::numeric + (data_json->>'amount1')::numeric) AS avg_liquidity
  FROM uniswap_events
  WHERE event_name = 'Mint'

3. Top 5 active pairs last 24h:
  SELECT pair_address, COUNT(*) AS event_count
  FROM uniswap_events
  WHERE timestamp >= NOW() - INTERVAL '1 day'
  GROUP BY pair_address
  ORDER BY event_count DESC
  LIMIT 5
`

// clickhouseSchemaDescription is the same contract for the ClickHouse table.
// Keep it in sync with storage.ClickHouseStore.
const clickhouseSchemaDescription = `
The uniswap_events table has the following columns:
- id: UUID
- block_number: UInt64
- transaction_hash: String
- log_index: UInt32 (position of the log inside its block)
- event_name: LowCardinality(String) (case-sensitive, one of: 'Swap', 'Mint', 'Burn', 'Sync')
- pair_address: String (the Uniswap V2 pair contract address that emitted the event)
- token0_address: Nullable(String) (ERC-20 address of token0 in that pair)
- token1_address: Nullable(String) (ERC-20 address of token1 in that pair)
- timestamp: DateTime('UTC') (block time)
- data_json: String (JSON text of the event arguments; every amount is a decimal string)
- created_at: DateTime('UTC')

Event arguments in data_json:
- Swap: sender, amount0In, amount1In, amount0Out, amount1Out, to
- Mint: sender, amount0, amount1
- Burn: sender, amount0, amount1, to
- Sync: reserve0, reserve1

Do NOT reference columns that do not exist (e.g. amount0in, liquidity_a).
To extract values from data_json use JSONExtractString and convert, for example:
  toDecimal256(JSONExtractString(data_json, 'amount0'), 0)
  toFloat64OrZero(JSONExtractString(data_json, 'amount1Out'))

Time-based filter examples:
  WHERE timestamp >= now() - INTERVAL 24 HOUR
  WHERE timestamp BETWEEN '2024-04-01' AND '2024-04-16'

Example SQL (no trailing semicolons):
1. Count Swap events today:
  SELECT count() AS count
  FROM uniswap_events
  WHERE event_name = 'Swap'
    AND timestamp >= today()

2. Average liquidity per Mint event:
  SELECT avg(toFloat64OrZero(JSONExtractString(data_json, 'amount0')) + toFloat64OrZero(JSONExtractString(data_json, 'amount1'))) AS avg_liquidity
  FROM uniswap_events
  WHERE event_name = 'Mint'

3. Top 5 active pairs last 24h:
  SELECT pair_address, count() AS event_count
  FROM uniswap_events
  WHERE timestamp >= now() - INTERVAL 1 DAY
  GROUP BY pair_address
  ORDER BY event_count DESC
  LIMIT 5
`

// SchemaDescription returns the table contract for dialect.
func SchemaDescription(dialect storage.Dialect) string {
	if dialect == storage.DialectClickHouse {
		return clickhouseSchemaDescription
	}
	return postgresSchemaDescription
}

func dialectName(dialect storage.Dialect) string {
	if dialect == storage.DialectClickHouse {
		return "ClickHouse"
	}
	return "PostgreSQL"
}

// classifierSystemPrompt tells the model how to pick one of the three tools.
func classifierSystemPrompt(dialect storage.Dialect) string {
	return fmt.Sprintf(`You are a helpful assistant that parses natural language instructions into structured parameters for Uniswap V2 operations.
You can determine if the user wants to perform a contract operation or a data analysis.

For contract operations, call the %s function.
For standard analysis (pool or price), call the %s function.
For custom analysis queries, call the %s function with a valid SQL query.

When generating SQL queries for custom analysis:
1. Use standard SQL syntax that works with %s
2. Write a single SELECT statement; never modify data
3. Include appropriate WHERE clauses to filter data
4. Use aggregation functions like COUNT, SUM, AVG when appropriate
5. Include ORDER BY clauses to sort results logically
6. Limit results to a reasonable number (e.g., LIMIT %d)
%s
Make sure all amounts are plain decimal numbers.`,
		FunctionContractOp, FunctionStandardAnalysis, FunctionCustomAnalysis,
		dialectName(dialect), constants.DefaultAnalysisRowCap, SchemaDescription(dialect))
}

const narratorSystemPrompt = `You are a helpful assistant that explains data analysis results in natural language.
Convert the query results into a clear, concise answer to the user's original question.
Be direct and specific in your response.`
